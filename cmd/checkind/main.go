package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hakambing/GuardianCare/internal/analytics"
	"github.com/hakambing/GuardianCare/internal/api"
	"github.com/hakambing/GuardianCare/internal/asr"
	"github.com/hakambing/GuardianCare/internal/audio"
	"github.com/hakambing/GuardianCare/internal/auth"
	"github.com/hakambing/GuardianCare/internal/circuitbreaker"
	"github.com/hakambing/GuardianCare/internal/config"
	"github.com/hakambing/GuardianCare/internal/forwarder"
	"github.com/hakambing/GuardianCare/internal/llm"
	"github.com/hakambing/GuardianCare/internal/metrics"
	"github.com/hakambing/GuardianCare/internal/pending"
	"github.com/hakambing/GuardianCare/internal/prompt"
	"github.com/hakambing/GuardianCare/internal/store/postgres"
	"github.com/hakambing/GuardianCare/internal/workers"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`checkind - elderly check-in orchestration service

Usage:
  checkind <command>

Commands:
  serve      Start the check-in service
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  JWT_SECRET                Shared token signing secret (required)
  HTTP_ADDR                 HTTP server address (default: ":6000")
  PUBLIC_BASE_URL           Address workers use for callbacks (default: "http://check-in-service:6000")

  ASR_SERVICE_URL           Transcription worker (default: "http://asr-service:6001")
  LLM_SERVICE_URL           Inference worker (default: "http://llm-service:6002")
  STORAGE_SERVICE_URL       Check-in storage service (default: "http://auth-service:3000")

  DATA_DIR                  Temporary audio area (default: "./data")
  PROMPT_PATH               System instruction file (default: "prompt.md")
  FFMPEG_BIN                Audio converter binary (default: "ffmpeg")
  MIC_GAIN                  Wearable PCM gain multiplier (default: "12")
  MIC_SAMPLE_RATE           Wearable PCM sample rate (default: "4000")
  LLM_MAX_TOKENS            Completion token budget (default: "512")

  DISPATCH_TIMEOUT          Outbound dispatch timeout (default: "30s")
  DISPATCH_WORKERS          Dispatch pool size (default: "4")
  DISPATCH_QUEUE_SIZE       Dispatch queue capacity (default: "64")
  JOB_TTL                   Pending-job callback window (default: "10m")
  EVICT_INTERVAL            Eviction sweep interval (default: "1m")
  EVICT_BATCH               Max evictions per sweep (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before a host opens (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-circuit cooldown (default: "2m")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  REDIS_ADDR                Redis address for outcome analytics (optional)
  ANALYTICS_RETENTION       Outcome counter lifetime (default: "168h")

  DATABASE_URL              PostgreSQL URL for durable pending jobs (optional)
  DB_OP_TIMEOUT             Database operation timeout (default: "5s")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "check-in-service").
		Logger()

	promptBuilder, err := prompt.Load(cfg.PromptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prompt error: %v\n", err)
		return exitInvalidConfig
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "data dir error: %v\n", err)
		return exitRuntimeError
	}

	// Pending-job store: durable when a database is configured, otherwise
	// in memory.
	var store pending.Store
	var pgStore *postgres.Store
	if cfg.DatabaseURL != "" {
		pgStore, err = postgres.Open(context.Background(), cfg.DatabaseURL, cfg.DBOpTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "database error: %v\n", err)
			return exitRuntimeError
		}
		store = pgStore
		log.Info().Msg("durable pending-job store enabled")
	} else {
		store = pending.NewMemoryStore()
		log.Info().Msg("DATABASE_URL not set; pending jobs held in memory")
	}

	// Metrics sink (optional).
	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer, log)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Info().Str("port", cfg.MetricsPort).Str("path", cfg.MetricsPath).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	} else {
		log.Info().Msg("METRICS_ENABLED not set; metrics disabled")
	}

	// One breaker covers every downstream host; circuits are keyed per host.
	breaker := circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)

	asrClient, err := asr.New(cfg.ASRServiceURL, cfg.DispatchTimeout, breaker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asr client error: %v\n", err)
		return exitInvalidConfig
	}
	llmClient, err := llm.New(cfg.LLMServiceURL, cfg.DispatchTimeout, breaker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llm client error: %v\n", err)
		return exitInvalidConfig
	}
	storageClient, err := forwarder.NewHTTPStorageClient(cfg.StorageServiceURL, cfg.DispatchTimeout, breaker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage client error: %v\n", err)
		return exitInvalidConfig
	}

	fwd := forwarder.New(storageClient, sink, log)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		fwd = fwd.WithAnalytics(analytics.NewRedisSink(redisClient, cfg.AnalyticsRetention, log))
		log.Info().Str("redis", cfg.RedisAddr).Msg("outcome analytics enabled")
	} else {
		log.Info().Msg("REDIS_ADDR not set; outcome analytics disabled")
	}

	// dispatch performs the transcription hop for a pooled task. A failed
	// dispatch consumes its own pending job: no callback can ever arrive
	// for it.
	dispatch := func(ctx context.Context, task workers.Task) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.DispatchTimeout)
		defer cancel()

		err := asrClient.Dispatch(ctx, task.AudioPath, task.CallbackURL, task.Job.Token)
		// The recording has been handed off (or lost); either way it is no
		// longer needed on disk.
		_ = os.Remove(task.AudioPath)

		if err != nil {
			takeCtx, takeCancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
			defer takeCancel()
			if _, takeErr := store.Take(takeCtx, task.Job.ID, task.Job.Stage); takeErr != nil {
				log.Warn().Err(takeErr).Str("job_id", task.Job.ID.String()).Msg("reclaiming failed dispatch's job failed")
			}
		}
		return err
	}

	pool := workers.NewPool(workers.Config{
		Workers:      cfg.DispatchWorkers,
		QueueSize:    cfg.DispatchQueueSize,
		DrainTimeout: cfg.DispatchTimeout,
	}, dispatch, sink, log)

	evictor := pending.NewEvictor(pending.EvictorConfig{
		Interval: cfg.EvictInterval,
		Batch:    cfg.EvictBatch,
	}, store, log).WithMetrics(sink)

	deps := api.Deps{
		Verifier:      auth.NewVerifier(cfg.JWTSecret),
		Pending:       store,
		Pool:          pool,
		LLM:           llmClient,
		Prompt:        promptBuilder,
		Forwarder:     fwd,
		Audio:         audio.NewAccumulator(cfg.DataDir),
		Converter:     audio.NewFFmpegConverter(cfg.FFmpegBin),
		Sink:          sink,
		Log:           log,
		PublicBaseURL: cfg.PublicBaseURL,
		MicGain:       cfg.MicGain,
		MicSampleRate: cfg.MicSampleRate,
		LLMMaxTokens:  cfg.LLMMaxTokens,
		JobTTL:        cfg.JobTTL,
	}
	if pgStore != nil {
		deps.DB = pgStore
	}
	server := api.NewServer(deps)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	poolCtx, cancelPool := context.WithCancel(context.Background())
	evictorCtx, cancelEvictor := context.WithCancel(context.Background())

	var poolWg, evictorWg sync.WaitGroup
	poolWg.Add(1)
	go func() {
		defer poolWg.Done()
		pool.Run(poolCtx)
	}()
	evictorWg.Add(1)
	go func() {
		defer evictorWg.Done()
		evictor.Run(evictorCtx)
	}()

	log.Info().
		Int("workers", cfg.DispatchWorkers).
		Int("queue_size", cfg.DispatchQueueSize).
		Str("http", cfg.HTTPAddr).
		Msg("check-in service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	log.Info().Str("signal", received.String()).Msg("shutting down")

	// Phase 1: stop accepting submissions.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Phase 2: stop the evictor so it cannot race the drain.
	cancelEvictor()
	evictorWg.Wait()

	// Phase 3: stop the pool; accepted dispatches are drained first.
	cancelPool()
	poolWg.Wait()

	// Phase 4: stop the metrics server.
	if metricsServer != nil {
		metricsCtx, metricsCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsCancel()
		if err := metricsServer.Shutdown(metricsCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Phase 5: release backing connections.
	if pgStore != nil {
		if err := pgStore.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}

	log.Info().Msg("stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}
	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()
	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}
	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("checkind version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
