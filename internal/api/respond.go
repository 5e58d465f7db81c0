package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hakambing/GuardianCare/internal/audio"
	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/pending"
	"github.com/hakambing/GuardianCare/internal/workers"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError is the single place the error taxonomy meets HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var oe *domain.OrchestrationError

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errBody(err))
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, audio.ErrNoStream):
		writeJSON(w, http.StatusBadRequest, errBody(err))
	case errors.Is(err, pending.ErrNotFound):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "no pending job matches this callback",
		})
	case errors.Is(err, workers.ErrQueueFull):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "service is overloaded, try again later",
		})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(err))
	case errors.As(err, &oe):
		writeJSON(w, http.StatusBadGateway, errBody(err))
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
