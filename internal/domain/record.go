package domain

import (
	"strings"
	"time"
)

// Totals is the winner/error rollup stored alongside each game.
type Totals struct {
	Winners int `json:"winners"`
	Errors  int `json:"errors"`
}

// GameRecord is a saved match. It is never mutated after creation.
//
// Points and Metrics are pointers because records written by older app
// versions lack them; the stats package derives them on load.
type GameRecord struct {
	ID          string          `json:"id,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	MatchDate   string          `json:"matchDate"`
	Opponent    string          `json:"opponent"`
	Notes       string          `json:"notes"`
	Score       Score           `json:"score"`
	Serving     bool            `json:"serving"`
	RallyLength int             `json:"rallyLength"`
	Serve       ServeCounts     `json:"serve"`
	Winners     Winners         `json:"winners"`
	Errors      Errors          `json:"errors"`
	Special     Special         `json:"special"`
	Points      *PointCounts    `json:"points,omitempty"`
	Totals      Totals          `json:"totals"`
	Metrics     *Metrics        `json:"metrics,omitempty"`
	Logs        []PointLogEntry `json:"logs"`
}

// DisplayDate returns the match date, or the creation date when none was entered.
func (g *GameRecord) DisplayDate() string {
	if g.MatchDate != "" {
		return g.MatchDate
	}
	if len(g.CreatedAt) >= 10 {
		return g.CreatedAt[:10]
	}
	return g.CreatedAt
}

// Label is the "<date> · <opponent>" text used by history pickers.
func (g *GameRecord) Label() string {
	opponent := g.Opponent
	if opponent == "" {
		opponent = "Opponent"
	}
	return g.DisplayDate() + " · " + opponent
}

// Metrics is the flat summary cached on a record at save time.
type Metrics struct {
	Version int `json:"version"`

	FinalGameScore  string `json:"finalGameScore"`
	FinalPointScore string `json:"finalPointScore"`
	GamesWon        int    `json:"gamesWon"`
	GamesLost       int    `json:"gamesLost"`
	GameWinPercent  int    `json:"gameWinPercent"`

	PointsWon         int `json:"pointsWon"`
	PointsLost        int `json:"pointsLost"`
	TotalPointsPlayed int `json:"totalPointsPlayed"`
	PercentPointsWon  int `json:"percentPointsWon"`
	PercentPointsLost int `json:"percentPointsLost"`

	Winners         int `json:"winners"`
	ForehandWinners int `json:"forehandWinners"`
	BackhandWinners int `json:"backhandWinners"`
	Aces            int `json:"aces"`
	WinnerPercent   int `json:"winnerPercent"`

	Errors         int `json:"errors"`
	ForehandErrors int `json:"forehandErrors"`
	BackhandErrors int `json:"backhandErrors"`
	ErrorPercent   int `json:"errorPercent"`

	DoubleFaults         int `json:"doubleFaults"`
	OpponentDoubleFaults int `json:"opponentDoubleFaults"`
	OpponentAces         int `json:"opponentAces"`
	OpponentWinners      int `json:"opponentWinners"`

	ServePoints           int `json:"servePoints"`
	FirstServeAttempted   int `json:"firstServeAttempted"`
	SecondServeAttempted  int `json:"secondServeAttempted"`
	FirstServeIn          int `json:"firstServeIn"`
	SecondServeIn         int `json:"secondServeIn"`
	FirstServeWon         int `json:"firstServeWon"`
	SecondServeWon        int `json:"secondServeWon"`
	FirstServeInPercent   int `json:"firstServeInPercent"`
	SecondServeInPercent  int `json:"secondServeInPercent"`
	FirstServeWonPercent  int `json:"firstServeWonPercent"`
	SecondServeWonPercent int `json:"secondServeWonPercent"`

	ServePointsWon         int `json:"servePointsWon"`
	ReturnPoints           int `json:"returnPoints"`
	ReturnPointsWon        int `json:"returnPointsWon"`
	ServePointsWonPercent  int `json:"servePointsWonPercent"`
	ReturnPointsWonPercent int `json:"returnPointsWonPercent"`
}

// SaveRequest carries the operator-entered details for POST /api/match/save.
type SaveRequest struct {
	MatchDate string `json:"matchDate"`
	Opponent  string `json:"opponent"`
	Notes     string `json:"notes"`
}

// Validate trims the fields and checks the date format.
func (r *SaveRequest) Validate() error {
	r.MatchDate = strings.TrimSpace(r.MatchDate)
	r.Opponent = strings.TrimSpace(r.Opponent)
	if r.MatchDate == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, r.MatchDate); err != nil {
		return NewValidationError("matchDate", "must be a YYYY-MM-DD date")
	}
	return nil
}
