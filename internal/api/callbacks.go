package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/metrics"
)

func jobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "job"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed job id", domain.ErrBadRequest)
	}
	return id, nil
}

// handleASRCallback receives the transcription worker's result and advances
// the pipeline to inference. The pending job is consumed first, so a replayed
// delivery conflicts instead of dispatching inference twice.
func (s *Server) handleASRCallback(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeRejected)
		writeError(w, err)
		return
	}

	job, err := s.deps.Pending.Take(r.Context(), id, domain.StageTranscribe)
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeDuplicate)
		writeError(w, err)
		return
	}

	var body struct {
		Transcription string `json:"transcription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeRejected)
		writeError(w, fmt.Errorf("%w: malformed callback body", domain.ErrBadRequest))
		return
	}
	if strings.TrimSpace(body.Transcription) == "" {
		s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeRejected)
		writeError(w, fmt.Errorf("%w: transcription is empty", domain.ErrBadRequest))
		return
	}

	next, err := s.dispatchInference(r.Context(), identityFromJob(job), body.Transcription)
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeFailed)
		writeError(w, err)
		return
	}

	s.deps.Sink.CallbackOutcome(metrics.StageTranscribe, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "transcription received",
		"job_id":  next.ID.String(),
	})
}

// handleLLMCallback receives the inference worker's completion and forwards
// the validated record to storage.
func (s *Server) handleLLMCallback(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageInfer, metrics.OutcomeRejected)
		writeError(w, err)
		return
	}

	job, err := s.deps.Pending.Take(r.Context(), id, domain.StageInfer)
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageInfer, metrics.OutcomeDuplicate)
		writeError(w, err)
		return
	}

	envelope, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageInfer, metrics.OutcomeRejected)
		writeError(w, fmt.Errorf("%w: reading callback body", domain.ErrBadRequest))
		return
	}

	if err := s.deps.Forwarder.Forward(r.Context(), envelope, job.ElderlyID, job.Token); err != nil {
		s.deps.Sink.CallbackOutcome(metrics.StageInfer, metrics.OutcomeFailed)
		writeError(w, err)
		return
	}

	s.deps.Sink.CallbackOutcome(metrics.StageInfer, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"message": "check-in recorded"})
}
