// Package api provides the HTTP handlers for the study buddy API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sissi0509/AI-study-buddy/internal/store"
	"github.com/sissi0509/AI-study-buddy/internal/tutor"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// handleError maps domain errors onto HTTP statuses. Internal causes
// are logged; the client sees a stable generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var genErr *tutor.GenerationError

	switch {
	case errors.Is(err, tutor.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		Error(w, http.StatusConflict, "already exists")
	case errors.As(err, &genErr):
		log.Error().Err(err).Str("path", r.URL.Path).Str("stage", genErr.Stage).Msg("generation failed")
		Error(w, http.StatusBadGateway, "the tutor is temporarily unavailable, please try again")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decode parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
