package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gtstats/internal/domain"
	"gtstats/internal/scoring"
	"gtstats/internal/session"
)

// LogDisplayLimit caps the log entries returned with the live match.
const LogDisplayLimit = 30

// MatchResponse is the live match as the scoring screen shows it.
type MatchResponse struct {
	MatchID       string             `json:"matchId"`
	Applied       *bool              `json:"applied,omitempty"`
	ScoreLabel    string             `json:"scoreLabel"`
	PlayerScore   string             `json:"playerScore"`
	OpponentScore string             `json:"opponentScore"`
	State         *domain.MatchState `json:"state"`
}

func newMatchResponse(v session.View) MatchResponse {
	state := v.State
	if len(state.Logs) > LogDisplayLimit {
		state.Logs = state.Logs[:LogDisplayLimit]
	}
	return MatchResponse{
		MatchID:       v.MatchID,
		ScoreLabel:    scoring.ScoreLabel(state.Score),
		PlayerScore:   scoring.FormatScore(state.Score.PointsWon, state.Score.PointsLost),
		OpponentScore: scoring.FormatScore(state.Score.PointsLost, state.Score.PointsWon),
		State:         state,
	}
}

// ApplyAction handles POST /api/match/actions.
// Unknown actions answer 200 with applied=false and leave the match as is.
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req domain.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	action, err := req.ToAction()
	if err != nil {
		if ve := domain.AsValidationError(err); ve != nil {
			respondErrorWithField(w, http.StatusBadRequest, ve.Message, ve.Field)
			return
		}
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	applied, v := h.live.Apply(r.Context(), action)
	RecordActionResponseTime(time.Since(start))

	resp := newMatchResponse(v)
	resp.Applied = &applied
	respondJSON(w, http.StatusOK, resp)
}

// GetMatch handles GET /api/match.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newMatchResponse(h.live.Current()))
}

// ResetMatch handles POST /api/match/reset.
func (h *Handler) ResetMatch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newMatchResponse(h.live.Reset()))
}

// SaveMatch handles POST /api/match/save. An empty body saves without details.
func (h *Handler) SaveMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	game, err := h.live.Save(r.Context(), req)
	if ve := domain.AsValidationError(err); ve != nil {
		respondErrorWithField(w, http.StatusBadRequest, ve.Message, ve.Field)
		return
	}
	RecordGameSaved("live", err)
	if err != nil {
		h.logger.Error("failed to save live match", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "unable to save game, live match kept", "")
		return
	}
	respondJSON(w, http.StatusCreated, GameResponse{Game: game})
}

// SnapshotPayload carries a serialized live state.
type SnapshotPayload struct {
	MatchID  string          `json:"matchId,omitempty"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// GetSnapshot handles GET /api/match/snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	matchID, data, err := h.live.Snapshot()
	if err != nil {
		h.logger.Error("failed to snapshot live match", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "unable to snapshot match", "")
		return
	}
	respondJSON(w, http.StatusOK, SnapshotPayload{MatchID: matchID, Snapshot: data})
}

// RestoreMatch handles POST /api/match/restore.
func (h *Handler) RestoreMatch(w http.ResponseWriter, r *http.Request) {
	var req SnapshotPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if len(req.Snapshot) == 0 || string(req.Snapshot) == "null" {
		respondErrorWithField(w, http.StatusBadRequest, "is required", "snapshot")
		return
	}

	v, err := h.live.Restore(req.MatchID, req.Snapshot)
	if err != nil {
		if ve := domain.AsValidationError(err); ve != nil {
			respondErrorWithField(w, http.StatusUnprocessableEntity, ve.Message, ve.Field)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid snapshot", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newMatchResponse(v))
}

// RecoverMatch handles POST /api/matches/{matchId}/recover. It restores the
// live match from the last checkpoint stored for matchId.
func (h *Handler) RecoverMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchId")
	if matchID == "" {
		respondError(w, http.StatusBadRequest, "matchId is required", "")
		return
	}

	data, err := h.actions.GetLatestSnapshot(r.Context(), matchID)
	if errors.Is(err, domain.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no checkpoint for match", "")
		return
	}
	if err != nil {
		RecordClickHouseQueryError()
		h.logger.Error("failed to fetch latest checkpoint",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "failed to fetch checkpoint", "")
		return
	}

	v, err := h.live.Restore(matchID, data)
	if err != nil {
		h.logger.Error("stored checkpoint rejected",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "stored checkpoint could not be restored", "")
		return
	}
	respondJSON(w, http.StatusOK, newMatchResponse(v))
}
