package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hakambing/GuardianCare/internal/auth"
	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/llm"
	"github.com/hakambing/GuardianCare/internal/metrics"
	"github.com/hakambing/GuardianCare/internal/workers"
)

// maxUploadBytes bounds a mobile recording. Voice check-ins run well under a
// minute; anything bigger is a misbehaving client.
const maxUploadBytes = 32 << 20

func identity(r *http.Request) auth.Identity {
	ident, _ := auth.IdentityFrom(r.Context())
	return ident
}

// identityFromJob recovers the submitter's identity from a consumed pending
// job, so the next hop keeps riding the original credential.
func identityFromJob(job domain.PendingJob) auth.Identity {
	return auth.Identity{ElderlyID: job.ElderlyID, Token: job.Token}
}

// registerJob creates the pending entry and hands the dispatch to the pool.
// If the pool has no room the entry is rolled back so the rejected submission
// leaves no trace behind.
func (s *Server) registerJob(ctx context.Context, job domain.PendingJob, audioPath string) error {
	if err := s.deps.Pending.Create(ctx, job); err != nil {
		return fmt.Errorf("registering pending job: %w", err)
	}

	err := s.deps.Pool.Enqueue(workers.Task{
		Job:         job,
		AudioPath:   audioPath,
		CallbackURL: s.callbackURL(job),
	})
	if err != nil {
		if _, takeErr := s.deps.Pending.Take(ctx, job.ID, job.Stage); takeErr != nil {
			s.deps.Log.Warn().Err(takeErr).Str("job_id", job.ID.String()).Msg("rolling back pending job failed")
		}
		return err
	}
	return nil
}

func (s *Server) newJob(ident auth.Identity, stage domain.Stage, transcript string) domain.PendingJob {
	now := s.deps.Clock()
	return domain.PendingJob{
		ID:         uuid.New(),
		ElderlyID:  ident.ElderlyID,
		Token:      ident.Token,
		Stage:      stage,
		Transcript: transcript,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.deps.JobTTL),
	}
}

func (s *Server) callbackURL(job domain.PendingJob) string {
	base := strings.TrimSuffix(s.deps.PublicBaseURL, "/")
	switch job.Stage {
	case domain.StageInfer:
		return fmt.Sprintf("%s/llm/callback/%s", base, job.ID)
	default:
		return fmt.Sprintf("%s/asr/callback/%s", base, job.ID)
	}
}

// dispatchInference registers the inference job and submits it in-request.
// Unlike the pooled transcription hop, a failure here is surfaced to the
// caller that is still waiting: the text submitter or the callback-issuing
// transcription worker.
func (s *Server) dispatchInference(ctx context.Context, ident auth.Identity, transcript string) (domain.PendingJob, error) {
	job := s.newJob(ident, domain.StageInfer, transcript)
	if err := s.deps.Pending.Create(ctx, job); err != nil {
		return domain.PendingJob{}, fmt.Errorf("registering pending job: %w", err)
	}

	s.deps.Sink.DispatchesInFlightIncr()
	start := s.deps.Clock()
	err := s.deps.LLM.Dispatch(ctx, llm.Request{
		Prompt:     s.deps.Prompt.Render(transcript),
		NPredict:   s.deps.LLMMaxTokens,
		Stream:     false,
		JSONSchema: s.deps.Prompt.Schema(),
		Callback:   s.callbackURL(job),
	}, ident.Token)
	s.deps.Sink.DispatchesInFlightDecr()

	if err != nil {
		s.deps.Sink.DispatchCompleted(metrics.StageInfer, metrics.ClassifyStatus(0, err), s.deps.Clock().Sub(start))
		if _, takeErr := s.deps.Pending.Take(ctx, job.ID, job.Stage); takeErr != nil {
			s.deps.Log.Warn().Err(takeErr).Str("job_id", job.ID.String()).Msg("rolling back pending job failed")
		}
		return domain.PendingJob{}, err
	}

	s.deps.Sink.DispatchCompleted(metrics.StageInfer, metrics.StatusClass2xx, s.deps.Clock().Sub(start))
	return job, nil
}

// handleMobileAudio accepts a complete recording from the mobile app,
// converting it to WAV when it arrives in a phone container format.
func (s *Server) handleMobileAudio(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	s.deps.Sink.SubmissionReceived("audio")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: malformed multipart form", domain.ErrBadRequest))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, fmt.Errorf("%w: audio file part required", domain.ErrBadRequest))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	uploadPath, err := s.deps.Audio.SaveUpload(ident.ElderlyID, file, ext)
	if err != nil {
		writeError(w, err)
		return
	}

	audioPath := uploadPath
	if ext != ".wav" && s.deps.Converter != nil {
		wavPath := strings.TrimSuffix(uploadPath, ext) + ".wav"
		if err := s.deps.Converter.Convert(r.Context(), uploadPath, wavPath); err != nil {
			_ = os.Remove(uploadPath)
			writeError(w, fmt.Errorf("%w: unsupported audio format", domain.ErrBadRequest))
			return
		}
		_ = os.Remove(uploadPath)
		audioPath = wavPath
	}

	job := s.newJob(ident, domain.StageTranscribe, "")
	if err := s.registerJob(r.Context(), job, audioPath); err != nil {
		_ = os.Remove(audioPath)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "audio processing in progress",
		"job_id":  job.ID.String(),
	})
}

// handleMobileText accepts an already-transcribed check-in and skips straight
// to the inference hop.
func (s *Server) handleMobileText(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	s.deps.Sink.SubmissionReceived("text")

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrBadRequest))
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, fmt.Errorf("%w: text is required", domain.ErrBadRequest))
		return
	}

	job, err := s.dispatchInference(r.Context(), ident, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "text processing in progress",
		"job_id":  job.ID.String(),
	})
}

// handleDeviceStream appends one raw PCM chunk from the wearable.
func (s *Server) handleDeviceStream(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)

	chunk, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: reading chunk", domain.ErrBadRequest))
		return
	}
	if len(chunk) == 0 {
		writeError(w, fmt.Errorf("%w: empty audio chunk", domain.ErrBadRequest))
		return
	}

	if err := s.deps.Audio.Append(ident.ElderlyID, chunk); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "chunk received"})
}

// handleDeviceStop closes the wearable's stream, encodes it and dispatches
// transcription.
func (s *Server) handleDeviceStop(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	s.deps.Sink.SubmissionReceived("stream")

	wavPath, err := s.deps.Audio.Finalize(ident.ElderlyID, s.deps.MicGain, s.deps.MicSampleRate)
	if err != nil {
		writeError(w, err)
		return
	}

	job := s.newJob(ident, domain.StageTranscribe, "")
	if err := s.registerJob(r.Context(), job, wavPath); err != nil {
		_ = os.Remove(wavPath)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "audio processing in progress",
		"job_id":  job.ID.String(),
	})
}

func (s *Server) handleFall(w http.ResponseWriter, r *http.Request) {
	s.relayEvent(w, r, domain.EventFall)
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	s.relayEvent(w, r, domain.EventEmergency)
}

// relayEvent forwards a discrete device event synchronously. There is no
// pipeline to wait on, so the response reflects the storage outcome.
func (s *Server) relayEvent(w http.ResponseWriter, r *http.Request, kind domain.EventKind) {
	ident := identity(r)
	s.deps.Sink.SubmissionReceived(string(kind))

	if err := s.deps.Forwarder.RelayEvent(r.Context(), kind, ident.ElderlyID, ident.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s recorded", kind),
	})
}
