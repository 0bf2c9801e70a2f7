// Package stats derives percentage metrics from match counters. Every
// function is pure; nothing here touches the live session.
package stats

import (
	"fmt"
	"math"

	"gtstats/internal/domain"
	"gtstats/internal/scoring"
)

// FormulaVersion tags metrics computed by Compute. Bump it whenever a
// formula changes so stored metrics can be told apart.
const FormulaVersion = 1

// Percent returns round(100*n/d), or 0 when d is not positive.
func Percent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(d)))
}

// Breakdown is the won/lost point split of one record.
type Breakdown struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

// Played returns the number of points that reached an outcome.
func (b Breakdown) Played() int {
	return b.Won + b.Lost
}

// PointBreakdown counts points won and lost.
//
// Records saved before explicit point counts existed have no Points
// section; their non-winner points won are reconstructed from log entries
// marked as won. That count is added to the winner tally as is, so a
// winner that also appears in the log is counted twice.
func PointBreakdown(r *domain.GameRecord) Breakdown {
	explicit := 0
	if r.Points != nil {
		explicit = r.Points.Won
	} else {
		for _, entry := range r.Logs {
			if entry.Won() {
				explicit++
			}
		}
	}

	return Breakdown{
		Won: r.Winners.Total() + explicit,
		Lost: r.Errors.Total() +
			r.Special.DoubleFault +
			r.Special.OpponentWinner +
			r.Special.OpponentAce,
	}
}

// Serve holds serve point count and rates for one record.
type Serve struct {
	ServePoints           int `json:"servePoints"`
	FirstServeInPercent   int `json:"firstServeInPercent"`
	SecondServeInPercent  int `json:"secondServeInPercent"`
	FirstServeWonPercent  int `json:"firstServeWonPercent"`
	SecondServeWonPercent int `json:"secondServeWonPercent"`
}

// ServeStats resolves the number of serve points through a fallback chain
// and derives the serve rates over it. The chain, in order: the sum of the
// attempt and serve-in counters when any is set, the stored servePoints,
// pointsPlayed when the player served every point, else zero.
func ServeStats(r *domain.GameRecord, pointsPlayed int) Serve {
	sv := r.Serve

	servePoints := 0
	switch counters := sv.FirstAttempt + sv.SecondAttempt + sv.FirstServeIn + sv.SecondServeIn; {
	case sv.FirstAttempt != 0 || sv.SecondAttempt != 0 || sv.FirstServeIn != 0 || sv.SecondServeIn != 0:
		servePoints = counters
	case sv.ServePoints > 0:
		servePoints = sv.ServePoints
	case sv.ServedAllPoints:
		servePoints = pointsPlayed
	}

	return Serve{
		ServePoints:           servePoints,
		FirstServeInPercent:   Percent(sv.FirstServeIn, servePoints),
		SecondServeInPercent:  Percent(sv.SecondServeIn, servePoints),
		FirstServeWonPercent:  Percent(sv.FirstServeWon, servePoints),
		SecondServeWonPercent: Percent(sv.SecondServeWon, servePoints),
	}
}

// Compute builds the flat metrics summary for a record. The result is meant
// to be stored with the record and not recomputed afterwards.
func Compute(r *domain.GameRecord) *domain.Metrics {
	points := PointBreakdown(r)
	played := points.Played()
	serve := ServeStats(r, played)

	servePointsWon := r.Serve.FirstServeWon + r.Serve.SecondServeWon
	returnPointsWon := points.Won - servePointsWon
	if r.Points != nil {
		servePointsWon = r.Points.ServeWon
		returnPointsWon = r.Points.ReturnWon
	}
	if returnPointsWon < 0 {
		returnPointsWon = 0
	}
	returnPoints := played - serve.ServePoints
	if returnPoints < 0 {
		returnPoints = 0
	}

	score := r.Score
	winners := r.Winners.Total()
	errs := r.Errors.Total()

	return &domain.Metrics{
		Version: FormulaVersion,

		FinalGameScore:  fmt.Sprintf("%d-%d", score.GamesWon, score.GamesLost),
		FinalPointScore: FinalPointScore(score),
		GamesWon:        score.GamesWon,
		GamesLost:       score.GamesLost,
		GameWinPercent:  Percent(score.GamesWon, score.GamesWon+score.GamesLost),

		PointsWon:         points.Won,
		PointsLost:        points.Lost,
		TotalPointsPlayed: played,
		PercentPointsWon:  Percent(points.Won, played),
		PercentPointsLost: Percent(points.Lost, played),

		Winners:         winners,
		ForehandWinners: r.Winners.Forehand,
		BackhandWinners: r.Winners.Backhand,
		Aces:            r.Winners.Aces,
		WinnerPercent:   Percent(winners, played),

		Errors:         errs,
		ForehandErrors: r.Errors.Forehand(),
		BackhandErrors: r.Errors.Backhand(),
		ErrorPercent:   Percent(errs, played),

		DoubleFaults:         r.Special.DoubleFault,
		OpponentDoubleFaults: r.Special.OpponentDoubleFault,
		OpponentAces:         r.Special.OpponentAce,
		OpponentWinners:      r.Special.OpponentWinner,

		ServePoints:           serve.ServePoints,
		FirstServeAttempted:   r.Serve.FirstAttempt,
		SecondServeAttempted:  r.Serve.SecondAttempt,
		FirstServeIn:          r.Serve.FirstServeIn,
		SecondServeIn:         r.Serve.SecondServeIn,
		FirstServeWon:         r.Serve.FirstServeWon,
		SecondServeWon:        r.Serve.SecondServeWon,
		FirstServeInPercent:   serve.FirstServeInPercent,
		SecondServeInPercent:  serve.SecondServeInPercent,
		FirstServeWonPercent:  serve.FirstServeWonPercent,
		SecondServeWonPercent: serve.SecondServeWonPercent,

		ServePointsWon:         servePointsWon,
		ReturnPoints:           returnPoints,
		ReturnPointsWon:        returnPointsWon,
		ServePointsWonPercent:  Percent(servePointsWon, serve.ServePoints),
		ReturnPointsWonPercent: Percent(returnPointsWon, returnPoints),
	}
}

// Resolve returns the metrics stored on the record, or derives them when the
// record predates stored metrics. Stored numbers are never recomputed.
func Resolve(r *domain.GameRecord) *domain.Metrics {
	if r.Metrics != nil {
		return r.Metrics
	}
	return Compute(r)
}

// FinalPointScore renders the point score of the unfinished game, e.g. "40 - AD".
func FinalPointScore(score domain.Score) string {
	return scoring.FormatScore(score.PointsWon, score.PointsLost) + " - " +
		scoring.FormatScore(score.PointsLost, score.PointsWon)
}

// BuildRecord freezes the live state into a record ready to be stored,
// with totals and metrics computed. ID and CreatedAt are left to the store.
func BuildRecord(s *domain.MatchState, req domain.SaveRequest) *domain.GameRecord {
	points := s.Points
	logs := make([]domain.PointLogEntry, len(s.Logs))
	copy(logs, s.Logs)

	r := &domain.GameRecord{
		MatchDate:   req.MatchDate,
		Opponent:    req.Opponent,
		Notes:       req.Notes,
		Score:       s.Score,
		Serving:     s.Serving,
		RallyLength: s.RallyLength,
		Serve:       s.Serve,
		Winners:     s.Winners,
		Errors:      s.Errors,
		Special:     s.Special,
		Points:      &points,
		Totals: domain.Totals{
			Winners: s.Winners.Total(),
			Errors:  s.Errors.Total(),
		},
		Logs: logs,
	}
	r.Metrics = Compute(r)
	return r
}
