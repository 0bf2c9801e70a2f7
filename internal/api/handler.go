package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gtstats/internal/domain"
	"gtstats/internal/session"
	"gtstats/internal/stats"
)

// GameStore reads and writes saved games.
type GameStore interface {
	List(ctx context.Context) ([]*domain.GameRecord, error)
	Get(ctx context.Context, id string) (*domain.GameRecord, error)
	Put(ctx context.Context, game *domain.GameRecord) error
	Ping(ctx context.Context) error
}

// ActionRepository reads the checkpoint history kept in ClickHouse.
type ActionRepository interface {
	GetActionTally(ctx context.Context, matchID string) (*domain.ActionTally, error)
	GetLatestSnapshot(ctx context.Context, matchID string) ([]byte, error)
	Ping(ctx context.Context) error
}

// LiveSession is the single live match being scored.
type LiveSession interface {
	Apply(ctx context.Context, action domain.Action) (bool, session.View)
	Current() session.View
	Reset() session.View
	Snapshot() (string, []byte, error)
	Restore(matchID string, data []byte) (session.View, error)
	Save(ctx context.Context, req domain.SaveRequest) (*domain.GameRecord, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	store   GameStore
	actions ActionRepository
	live    LiveSession
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(store GameStore, actions ActionRepository, live LiveSession, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		actions: actions,
		live:    live,
		logger:  logger,
	}
}

// GamesResponse wraps a list of saved games.
type GamesResponse struct {
	Games []*domain.GameRecord `json:"games"`
}

// GameResponse wraps a single saved game. Game is null when there is none.
type GameResponse struct {
	Game *domain.GameRecord `json:"game"`
}

// listSorted loads every game, newest first.
func (h *Handler) listSorted(ctx context.Context) ([]*domain.GameRecord, error) {
	games, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	stats.SortByRecency(games)
	return games, nil
}

func (h *Handler) storeFailure(w http.ResponseWriter, op string, err error) {
	h.logger.Error("game store request failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, domain.ErrMalformedRecord) {
		respondError(w, http.StatusInternalServerError, "a stored game could not be read", "")
		return
	}
	respondError(w, http.StatusInternalServerError, "unable to process request", "")
}

// ListGames handles GET /api/games.
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.listSorted(r.Context())
	if err != nil {
		h.storeFailure(w, "list", err)
		return
	}
	respondJSON(w, http.StatusOK, GamesResponse{Games: games})
}

// LatestGame handles GET /api/games/latest.
func (h *Handler) LatestGame(w http.ResponseWriter, r *http.Request) {
	games, err := h.store.List(r.Context())
	if err != nil {
		h.storeFailure(w, "latest", err)
		return
	}
	respondJSON(w, http.StatusOK, GameResponse{Game: stats.Latest(games)})
}

// GetGame handles GET /api/games/{id}.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || strings.ContainsAny(id, "/\\") {
		respondErrorWithField(w, http.StatusBadRequest, "invalid game id", "id")
		return
	}

	game, err := h.store.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		respondError(w, http.StatusNotFound, "game not found", "")
		return
	}
	if err != nil {
		h.storeFailure(w, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, GameResponse{Game: game})
}

// CreateGame handles POST /api/games. The store assigns id and createdAt;
// metrics are computed when the client did not send them.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var game domain.GameRecord
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if game.Metrics == nil {
		game.Metrics = stats.Compute(&game)
	}
	if game.Logs == nil {
		game.Logs = []domain.PointLogEntry{}
	}

	err := h.store.Put(r.Context(), &game)
	RecordGameSaved("api", err)
	if err != nil {
		h.storeFailure(w, "put", err)
		return
	}
	respondJSON(w, http.StatusCreated, GameResponse{Game: &game})
}

// HistoryResponse is everything the history view renders.
type HistoryResponse struct {
	Games   []*domain.GameRecord `json:"games"`
	Series  []stats.SeriesPoint  `json:"series"`
	Summary stats.HistorySummary `json:"summary"`
	Latest  *domain.GameRecord   `json:"latest"`
	Cards   []stats.Card         `json:"cards"`
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	games, err := h.listSorted(r.Context())
	if err != nil {
		h.storeFailure(w, "history", err)
		return
	}

	resp := HistoryResponse{
		Games:   games,
		Series:  stats.Series(games),
		Summary: stats.Summarize(games),
		Cards:   []stats.Card{},
	}
	if len(games) > 0 {
		resp.Latest = games[0]
		resp.Cards = stats.Cards(games[0])
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetActionTally handles GET /api/matches/{matchId}/actions.
func (h *Handler) GetActionTally(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchId")
	if matchID == "" {
		respondError(w, http.StatusBadRequest, "matchId is required", "")
		return
	}

	tally, err := h.actions.GetActionTally(r.Context(), matchID)
	if err != nil {
		RecordClickHouseQueryError()
		h.logger.Error("failed to fetch action tally",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "failed to fetch action tally", "")
		return
	}
	if tally == nil || tally.TotalActions == 0 {
		respondError(w, http.StatusNotFound, "match not found", "")
		return
	}

	tally.ResponseTimes = ActionResponseTimePercentiles()
	respondJSON(w, http.StatusOK, tally)
}

// HealthResponse represents the response for health check endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck handles GET /health.
// It returns a simple health status without checking dependencies.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// ReadinessResponse represents the response for readiness check.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessCheck handles GET /ready.
// It verifies that the game store and ClickHouse are reachable.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string)
	ready := true

	for name, ping := range map[string]func(context.Context) error{
		"s3":         h.store.Ping,
		"clickhouse": h.actions.Ping,
	} {
		if err := ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			ready = false
			continue
		}
		checks[name] = "healthy"
	}

	resp := ReadinessResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
