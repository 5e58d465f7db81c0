// Package api exposes the check-in service's HTTP surface: submission routes
// for mobile clients and wearables, callback routes for the workers, and
// health. Every route except health sits behind the bearer-token middleware.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hakambing/GuardianCare/internal/audio"
	"github.com/hakambing/GuardianCare/internal/auth"
	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/llm"
	"github.com/hakambing/GuardianCare/internal/metrics"
	"github.com/hakambing/GuardianCare/internal/pending"
	"github.com/hakambing/GuardianCare/internal/prompt"
	"github.com/hakambing/GuardianCare/internal/workers"
)

// Enqueuer accepts dispatch tasks without blocking.
type Enqueuer interface {
	Enqueue(task workers.Task) error
}

// InferenceDispatcher submits structured-generation jobs. Inference dispatch
// happens in-request (from the text route and the transcription callback), so
// its failure is visible to the caller that is still waiting.
type InferenceDispatcher interface {
	Dispatch(ctx context.Context, req llm.Request, token string) error
}

// Pinger reports whether a backing component is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordForwarder persists finished check-ins and discrete events.
type RecordForwarder interface {
	Forward(ctx context.Context, envelope []byte, elderlyID, token string) error
	RelayEvent(ctx context.Context, kind domain.EventKind, elderlyID, token string) error
}

// Deps is everything the HTTP surface needs. main wires it once at startup.
type Deps struct {
	Verifier  *auth.Verifier
	Pending   pending.Store
	Pool      Enqueuer
	LLM       InferenceDispatcher
	Prompt    *prompt.Builder
	Forwarder RecordForwarder
	Audio     *audio.Accumulator
	Converter audio.Converter
	Sink      metrics.Sink
	Log       zerolog.Logger

	// DB, when set, is reported by the verbose health check.
	DB Pinger

	// PublicBaseURL is where workers reach the callback routes.
	PublicBaseURL string
	MicGain       int
	MicSampleRate int
	LLMMaxTokens  int
	JobTTL        time.Duration

	Clock func() time.Time
}

// Server handles the check-in HTTP surface.
type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Server{deps: deps}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.deps.Verifier, s.deps.Log))

		r.Post("/mobile/audio", s.handleMobileAudio)
		r.Post("/mobile/text", s.handleMobileText)

		r.Post("/device/audio/stream", s.handleDeviceStream)
		r.Post("/device/audio/stop", s.handleDeviceStop)
		r.Post("/device/fall", s.handleFall)
		r.Post("/device/emergency", s.handleEmergency)

		r.Post("/asr/callback/{job}", s.handleASRCallback)
		r.Post("/llm/callback/{job}", s.handleLLMCallback)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.deps.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"service": "check-in-service",
	}

	if r.URL.Query().Get("verbose") == "true" && s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			body["database"] = "unreachable"
			body["status"] = "degraded"
		} else {
			body["database"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, body)
}
