package domain

// Side identifies who won a point.
type Side string

// Sides of the court. The tracked player is always SidePlayer.
const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
)

// Outcome labels written to PointLogEntry.Outcome.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

// Score is the running point and game tally of the live match.
type Score struct {
	PointsWon  int `json:"pointsWon"`
	PointsLost int `json:"pointsLost"`
	GamesWon   int `json:"gamesWon"`
	GamesLost  int `json:"gamesLost"`
}

// ServeCounts holds serve counters. They only move while the tracked player serves.
type ServeCounts struct {
	FirstAttempt   int `json:"firstAttempt"`
	SecondAttempt  int `json:"secondAttempt"`
	FirstServeIn   int `json:"firstServeIn"`
	SecondServeIn  int `json:"secondServeIn"`
	FirstServeWon  int `json:"firstServeWon"`
	SecondServeWon int `json:"secondServeWon"`
	ServePoints    int `json:"servePoints"`

	// ServedAllPoints marks records where the player served every point
	// of the sample, so points played can stand in for serve points.
	ServedAllPoints bool `json:"servedAllPoints,omitempty"`
}

// Winners tallies outright winning shots.
type Winners struct {
	Forehand int `json:"forehand"`
	Backhand int `json:"backhand"`
	Aces     int `json:"aces"`
}

// Total returns the number of winners of any kind.
func (w Winners) Total() int {
	return w.Forehand + w.Backhand + w.Aces
}

// Errors tallies unforced errors by wing and direction.
type Errors struct {
	ForehandLong int `json:"forehandLong"`
	ForehandWide int `json:"forehandWide"`
	ForehandNet  int `json:"forehandNet"`
	BackhandLong int `json:"backhandLong"`
	BackhandWide int `json:"backhandWide"`
	BackhandNet  int `json:"backhandNet"`
}

// Forehand returns the forehand error count.
func (e Errors) Forehand() int {
	return e.ForehandLong + e.ForehandWide + e.ForehandNet
}

// Backhand returns the backhand error count.
func (e Errors) Backhand() int {
	return e.BackhandLong + e.BackhandWide + e.BackhandNet
}

// Total returns all unforced errors.
func (e Errors) Total() int {
	return e.Forehand() + e.Backhand()
}

// Special tallies faults and opponent-attributed points.
type Special struct {
	DoubleFault         int `json:"doubleFault"`
	OpponentDoubleFault int `json:"opponentDoubleFault"`
	OpponentAce         int `json:"opponentAce"`
	OpponentWinner      int `json:"opponentWinner"`
}

// PointCounts decomposes points won by the tracked player.
//
// Won counts points won without a winning shot (explicit wonPoint and
// opponent double faults). ServeWon and ReturnWon split every point the
// player won by who was serving, so ServeWon+ReturnWon equals
// Winners.Total()+Won.
type PointCounts struct {
	Won       int `json:"won"`
	ReturnWon int `json:"returnWon"`
	ServeWon  int `json:"serveWon"`
}

// PointContext is the transient classification of the point in progress.
type PointContext struct {
	Serve            string `json:"serve,omitempty"`
	Winner           string `json:"winner,omitempty"`
	Miss             string `json:"miss,omitempty"`
	DoubleFault      string `json:"doubleFault,omitempty"`
	FirstServeMissed bool   `json:"firstServeMissed,omitempty"`
}

// MatchState is the live mutable aggregate. Only the dispatcher mutates it.
type MatchState struct {
	Score       Score           `json:"score"`
	Serving     bool            `json:"serving"`
	Serve       ServeCounts     `json:"serve"`
	RallyLength int             `json:"rallyLength"`
	Winners     Winners         `json:"winners"`
	Errors      Errors          `json:"errors"`
	Special     Special         `json:"special"`
	Points      PointCounts     `json:"points"`
	Context     PointContext    `json:"context"`
	Logs        []PointLogEntry `json:"logs"`
	ShotCount   int             `json:"shotCount"`
}

// NewMatchState returns a fresh match with the tracked player serving.
func NewMatchState() *MatchState {
	return &MatchState{
		Serving: true,
		Logs:    []PointLogEntry{},
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s *MatchState) Clone() *MatchState {
	c := *s
	c.Logs = make([]PointLogEntry, len(s.Logs))
	copy(c.Logs, s.Logs)
	return &c
}
