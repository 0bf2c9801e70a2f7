// Package session holds the single live match of the process and
// serializes every access to it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"gtstats/internal/domain"
	"gtstats/internal/scoring"
	"gtstats/internal/stats"
)

// Store persists finished games.
type Store interface {
	Put(ctx context.Context, game *domain.GameRecord) error
}

// Config configures a Session.
type Config struct {
	Store        Store
	Checkpointer scoring.Checkpointer
	// ServingFirst is the serving flag a fresh match starts with.
	ServingFirst bool
	Logger       *slog.Logger
	// NewMatchID overrides match ID generation. Defaults to a random UUID.
	NewMatchID func() string
}

// View is a consistent copy of the live match.
type View struct {
	MatchID string
	State   *domain.MatchState
}

// Session is the live match. One mutex covers the dispatcher so each
// action, including its checkpoint, completes before the next one starts.
type Session struct {
	mu           sync.Mutex
	dispatcher   *scoring.Dispatcher
	store        Store
	servingFirst bool
	newMatchID   func() string
	logger       *slog.Logger
}

// New creates a session with a fresh match.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newMatchID := cfg.NewMatchID
	if newMatchID == nil {
		newMatchID = func() string { return uuid.NewString() }
	}

	s := &Session{
		dispatcher:   scoring.NewDispatcher(newMatchID(), cfg.Checkpointer, logger),
		store:        cfg.Store,
		servingFirst: cfg.ServingFirst,
		newMatchID:   newMatchID,
		logger:       logger,
	}
	s.dispatcher.Reset(s.dispatcher.MatchID(), cfg.ServingFirst)
	return s
}

// Apply dispatches one action and returns whether it was recognised along
// with the match it produced.
func (s *Session) Apply(ctx context.Context, action domain.Action) (bool, View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := s.dispatcher.Apply(ctx, action)
	return applied, s.view()
}

// Current returns a copy of the live match.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Reset discards the live match and starts a new one.
func (s *Session) Reset() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return s.view()
}

func (s *Session) view() View {
	return View{MatchID: s.dispatcher.MatchID(), State: s.dispatcher.State()}
}

func (s *Session) reset() {
	previous := s.dispatcher.MatchID()
	s.dispatcher.Reset(s.newMatchID(), s.servingFirst)
	s.logger.Info("live match reset",
		slog.String("previous_match_id", previous),
		slog.String("match_id", s.dispatcher.MatchID()),
	)
}

// Snapshot serializes the live state.
func (s *Session) Snapshot() (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.dispatcher.Snapshot()
	if err != nil {
		return "", nil, fmt.Errorf("failed to snapshot match: %w", err)
	}
	return s.dispatcher.MatchID(), data, nil
}

// Restore replaces the live state with data. An empty matchID keeps the
// current match ID. A rejected snapshot leaves the live state untouched.
func (s *Session) Restore(matchID string, data []byte) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if matchID == "" {
		matchID = s.dispatcher.MatchID()
	}
	if err := s.dispatcher.Restore(matchID, data); err != nil {
		return View{}, err
	}

	v := s.view()
	s.logger.Info("live match restored",
		slog.String("match_id", matchID),
		slog.Int("shot_count", v.State.ShotCount),
	)
	return v, nil
}

// Save freezes the live match into a record, stores it and starts a new
// match. When the store fails the live match is kept as it was and the
// error wraps domain.ErrSaveFailed.
func (s *Session) Save(ctx context.Context, req domain.SaveRequest) (*domain.GameRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil, fmt.Errorf("%w: no store configured", domain.ErrSaveFailed)
	}

	matchID := s.dispatcher.MatchID()
	record := stats.BuildRecord(s.dispatcher.State(), req)
	if err := s.store.Put(ctx, record); err != nil {
		s.logger.Error("failed to save live match",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrSaveFailed, err)
	}

	s.logger.Info("live match saved",
		slog.String("match_id", matchID),
		slog.String("game_id", record.ID),
		slog.Int("points_played", record.Metrics.TotalPointsPlayed),
	)
	s.reset()
	return record, nil
}
