package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gtstats/internal/domain"
)

var actionsDispatched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gtstats",
		Subsystem: "scoring",
		Name:      "actions_total",
		Help:      "Total number of actions dispatched to the live match",
	},
	[]string{"action", "applied"},
)

// Checkpointer persists a checkpoint after each action. Failures are
// reported back but never undo the in-memory change.
type Checkpointer interface {
	Checkpoint(ctx context.Context, cp *domain.Checkpoint) error
}

// Dispatcher owns the live MatchState and is its only writer.
// It is not safe for concurrent use; callers serialize access.
type Dispatcher struct {
	matchID      string
	state        *domain.MatchState
	checkpointer Checkpointer
	logger       *slog.Logger
}

// NewDispatcher creates a dispatcher over a fresh match. checkpointer may be nil.
func NewDispatcher(matchID string, checkpointer Checkpointer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		matchID:      matchID,
		state:        domain.NewMatchState(),
		checkpointer: checkpointer,
		logger:       logger,
	}
}

// MatchID returns the identifier of the live match.
func (d *Dispatcher) MatchID() string {
	return d.matchID
}

// State returns a copy of the live state.
func (d *Dispatcher) State() *domain.MatchState {
	return d.state.Clone()
}

// Apply routes one action to the score machine, the serve and rally tracker
// and the point log, then checkpoints. Identifiers outside the vocabulary
// change nothing and report false.
func (d *Dispatcher) Apply(ctx context.Context, action domain.Action) bool {
	applied := d.apply(action)

	label := string(action)
	if !applied {
		label = "unknown"
	}
	actionsDispatched.WithLabelValues(label, strconv.FormatBool(applied)).Inc()

	if !applied {
		d.logger.Debug("ignoring unknown action",
			slog.String("match_id", d.matchID),
			slog.String("action", string(action)),
		)
	}

	d.checkpoint(ctx, action, applied)
	return applied
}

func (d *Dispatcher) apply(action domain.Action) bool {
	s := d.state

	switch action {
	case domain.ActionRally:
		IncrementRally(s)
	case domain.ActionResetRally:
		ResetRally(s)
	case domain.ActionFirstServeAttempt:
		serveMissed(s, false)
	case domain.ActionSecondServeAttempt:
		serveMissed(s, true)
	case domain.ActionFirstServeIn:
		serveIn(s, false)
	case domain.ActionSecondServeIn:
		serveIn(s, true)

	case domain.ActionWonPoint:
		s.Points.Won++
		d.concludePoint(domain.SidePlayer)
	case domain.ActionWinnerForehand:
		s.Winners.Forehand++
		s.Context.Winner = "forehand"
		d.concludePoint(domain.SidePlayer)
	case domain.ActionWinnerBackhand:
		s.Winners.Backhand++
		s.Context.Winner = "backhand"
		d.concludePoint(domain.SidePlayer)
	case domain.ActionWinnerAce:
		s.Winners.Aces++
		s.Context.Winner = "ace"
		d.concludePoint(domain.SidePlayer)

	case domain.ActionErrorForehandLong:
		s.Errors.ForehandLong++
		s.Context.Miss = "forehand long"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionErrorForehandWide:
		s.Errors.ForehandWide++
		s.Context.Miss = "forehand wide"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionErrorForehandNet:
		s.Errors.ForehandNet++
		s.Context.Miss = "forehand net"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionErrorBackhandLong:
		s.Errors.BackhandLong++
		s.Context.Miss = "backhand long"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionErrorBackhandWide:
		s.Errors.BackhandWide++
		s.Context.Miss = "backhand wide"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionErrorBackhandNet:
		s.Errors.BackhandNet++
		s.Context.Miss = "backhand net"
		d.concludePoint(domain.SideOpponent)

	case domain.ActionDoubleFault:
		s.Special.DoubleFault++
		s.Context.DoubleFault = "double fault"
		s.Context.FirstServeMissed = true
		d.concludePoint(domain.SideOpponent)
	case domain.ActionOpponentDoubleFault:
		s.Special.OpponentDoubleFault++
		s.Points.Won++
		s.Context.DoubleFault = "opponent double fault"
		d.concludePoint(domain.SidePlayer)
	case domain.ActionOpponentAce:
		s.Special.OpponentAce++
		s.Context.Winner = "opponent ace"
		d.concludePoint(domain.SideOpponent)
	case domain.ActionOpponentWinner:
		s.Special.OpponentWinner++
		s.Context.Winner = "opponent winner"
		d.concludePoint(domain.SideOpponent)

	default:
		return false
	}
	return true
}

// concludePoint is the single path for every scoring action.
func (d *Dispatcher) concludePoint(winner domain.Side) {
	s := d.state

	server := domain.SideOpponent
	if s.Serving {
		server = domain.SidePlayer
	}
	game := s.Score.GamesWon + s.Score.GamesLost + 1

	RecordServeOutcome(s, winner)
	outcome := domain.OutcomeLost
	if winner == domain.SidePlayer {
		recordPointWon(s)
		outcome = domain.OutcomeWon
	}

	ScorePoint(s, winner)
	LogPoint(s, outcome, server, game)
}

func (d *Dispatcher) checkpoint(ctx context.Context, action domain.Action, applied bool) {
	if d.checkpointer == nil {
		return
	}
	cp := domain.NewCheckpoint(d.matchID, action, applied, d.state.Clone())
	if err := d.checkpointer.Checkpoint(ctx, cp); err != nil {
		d.logger.Warn("checkpoint failed, live state kept",
			slog.String("match_id", d.matchID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}

// Reset replaces the live state wholesale with a fresh match.
func (d *Dispatcher) Reset(matchID string, serving bool) {
	d.matchID = matchID
	d.state = domain.NewMatchState()
	d.state.Serving = serving
}

// Snapshot serializes the live state.
func (d *Dispatcher) Snapshot() ([]byte, error) {
	return json.Marshal(d.state)
}

// Restore replaces the live state with a previously taken snapshot.
func (d *Dispatcher) Restore(matchID string, data []byte) error {
	var restored domain.MatchState
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := validateSnapshot(&restored); err != nil {
		return err
	}
	if restored.Logs == nil {
		restored.Logs = []domain.PointLogEntry{}
	}

	d.matchID = matchID
	d.state = &restored
	return nil
}

func validateSnapshot(s *domain.MatchState) error {
	counters := map[string]int{
		"score.pointsWon":  s.Score.PointsWon,
		"score.pointsLost": s.Score.PointsLost,
		"score.gamesWon":   s.Score.GamesWon,
		"score.gamesLost":  s.Score.GamesLost,
		"rallyLength":      s.RallyLength,
		"shotCount":        s.ShotCount,
	}
	for field, v := range counters {
		if v < 0 {
			return domain.NewValidationError(field, "must not be negative")
		}
	}
	if s.ShotCount != len(s.Logs) {
		return domain.NewValidationError("shotCount", "must equal the number of log entries")
	}
	return nil
}
