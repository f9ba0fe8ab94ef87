package worker

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Lartitiz/nowadays-coach/internal/coaching"
	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/internal/worker/sse"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// answerRequest is the body of POST .../answer.
type answerRequest struct {
	Answer string `json:"answer"`
}

// errorResponse is the JSON error body. Retryable marks failures the client
// may replay via the retry endpoint.
type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// handleHealth reports liveness and basic build info.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"ready":   s.ready.Load(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleGetSession returns the current session snapshot, loading persisted
// state on first access.
func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := s.identify(w, r)
	if !ok {
		return
	}

	sess, err := s.controller(userID, category).InitializeSession(r.Context())
	if err != nil {
		s.writeError(w, userID, category, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleStart moves the session from intro into coaching.
func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := s.identify(w, r)
	if !ok {
		return
	}

	ctrl := s.controller(userID, category)
	if _, err := ctrl.InitializeSession(r.Context()); err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	sess, err := ctrl.Start(r.Context())
	if err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	s.publishTurn(userID, sess)
	writeJSON(w, http.StatusOK, sess)
}

// handleAnswer submits one user answer.
func (s *Service) handleAnswer(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := s.identify(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "answer is required"})
		return
	}

	ctrl := s.controller(userID, category)
	if _, err := ctrl.InitializeSession(r.Context()); err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	sess, err := ctrl.Answer(r.Context(), req.Answer)
	if err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	s.publishTurn(userID, sess)
	writeJSON(w, http.StatusOK, sess)
}

// handleRetry replays the last failed turn.
func (s *Service) handleRetry(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := s.identify(w, r)
	if !ok {
		return
	}

	sess, err := s.controller(userID, category).Retry(r.Context())
	if err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	s.publishTurn(userID, sess)
	writeJSON(w, http.StatusOK, sess)
}

// handleReset wipes the session back to a fresh intro state.
func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := s.identify(w, r)
	if !ok {
		return
	}

	ctrl := s.controller(userID, category)
	if _, err := ctrl.InitializeSession(r.Context()); err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	sess, err := ctrl.Reset(r.Context())
	if err != nil {
		s.writeError(w, userID, category, err)
		return
	}

	s.sseBroadcaster.Publish(sse.Event{
		Type:     sse.EventReset,
		UserID:   userID,
		Category: category,
		Phase:    sess.Phase,
	})
	writeJSON(w, http.StatusOK, sess)
}

// identify extracts and validates the user and category of a request.
func (s *Service) identify(w http.ResponseWriter, r *http.Request) (string, models.Category, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return "", "", false
	}

	category := models.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown category"})
		return "", "", false
	}
	return userID, category, true
}

// publishTurn emits a progress event for a successful turn.
func (s *Service) publishTurn(userID string, sess *models.Session) {
	eventType := sse.EventTurn
	if sess.Phase == models.PhaseComplete {
		eventType = sse.EventCompleted
	}
	s.sseBroadcaster.Publish(sse.Event{
		Type:       eventType,
		UserID:     userID,
		Category:   sess.Category,
		Phase:      sess.Phase,
		Percentage: sess.CompletionPercentage,
	})
}

// writeError maps a turn error to an HTTP status. Inference failures come
// back as 502 with the retryable flag so the client can offer a retry.
func (s *Service) writeError(w http.ResponseWriter, userID string, category models.Category, err error) {
	var transportErr *inference.TransportError
	var malformedErr *inference.MalformedResponseError

	switch {
	case errors.Is(err, coaching.ErrEmptyAnswer):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, coaching.ErrTurnInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, coaching.ErrSessionComplete),
		errors.Is(err, coaching.ErrNotStarted),
		errors.Is(err, coaching.ErrNoPendingRetry):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &transportErr), errors.As(err, &malformedErr):
		log.Warn().Err(err).
			Str("userId", userID).
			Str("category", string(category)).
			Msg("Inference call failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "the coach is momentarily unavailable", Retryable: true})
	default:
		log.Error().Err(err).
			Str("userId", userID).
			Str("category", string(category)).
			Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
