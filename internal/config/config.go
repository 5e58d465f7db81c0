package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the check-in service. Values are loaded
// from environment variables; every component receives the piece it needs at
// construction, nothing reads the environment after startup.
type Config struct {
	HTTPAddr string `json:"http_addr"`

	// PublicBaseURL is the address workers use to reach this service's
	// callback endpoints. It must be routable from the worker hosts.
	PublicBaseURL string `json:"public_base_url"`

	JWTSecret string `json:"jwt_secret"`

	ASRServiceURL     string `json:"asr_service_url"`
	LLMServiceURL     string `json:"llm_service_url"`
	StorageServiceURL string `json:"storage_service_url"`

	// DataDir is the per-user temporary audio area.
	DataDir    string `json:"data_dir"`
	PromptPath string `json:"prompt_path"`

	// FFmpegBin converts non-WAV uploads before transcription dispatch.
	// Empty disables conversion and uploads are dispatched as received.
	FFmpegBin string `json:"ffmpeg_bin"`

	// MicGain and MicSampleRate describe the wearable's raw I2S stream.
	MicGain       int `json:"mic_gain"`
	MicSampleRate int `json:"mic_sample_rate"`

	LLMMaxTokens int `json:"llm_max_tokens"`

	DispatchTimeout   time.Duration `json:"-"`
	DispatchWorkers   int           `json:"dispatch_workers"`
	DispatchQueueSize int           `json:"dispatch_queue_size"`

	// JobTTL bounds how long a pending job waits for its worker callback
	// before the evictor reclaims it.
	JobTTL        time.Duration `json:"-"`
	EvictInterval time.Duration `json:"-"`
	EvictBatch    int           `json:"evict_batch"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	// RedisAddr enables the check-in analytics sink when set.
	RedisAddr          string        `json:"redis_addr,omitempty"`
	AnalyticsRetention time.Duration `json:"-"`

	// DatabaseURL enables the durable pending-job store when set;
	// otherwise pending jobs live in memory.
	DatabaseURL string        `json:"database_url,omitempty"`
	DBOpTimeout time.Duration `json:"-"`

	BreakerThreshold int           `json:"breaker_threshold"`
	BreakerCooldown  time.Duration `json:"-"`

	HTTPShutdownTimeout time.Duration `json:"-"`

	DispatchTimeoutStr     string `json:"dispatch_timeout"`
	JobTTLStr              string `json:"job_ttl"`
	EvictIntervalStr       string `json:"evict_interval"`
	AnalyticsRetentionStr  string `json:"analytics_retention"`
	DBOpTimeoutStr         string `json:"db_op_timeout"`
	BreakerCooldownStr     string `json:"breaker_cooldown"`
	HTTPShutdownTimeoutStr string `json:"http_shutdown_timeout"`
}

// Load reads configuration from environment variables with defaults.
// Malformed values are left at their zero value; Validate reports them.
func Load() Config {
	cfg := Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":6000"),
		PublicBaseURL:     envOr("PUBLIC_BASE_URL", "http://check-in-service:6000"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ASRServiceURL:     envOr("ASR_SERVICE_URL", "http://asr-service:6001"),
		LLMServiceURL:     envOr("LLM_SERVICE_URL", "http://llm-service:6002"),
		StorageServiceURL: envOr("STORAGE_SERVICE_URL", "http://auth-service:3000"),
		DataDir:           envOr("DATA_DIR", "./data"),
		PromptPath:        envOr("PROMPT_PATH", "prompt.md"),
		FFmpegBin:         envOr("FFMPEG_BIN", "ffmpeg"),
		MicGain:           envInt("MIC_GAIN", 12),
		MicSampleRate:     envInt("MIC_SAMPLE_RATE", 4000),
		LLMMaxTokens:      envInt("LLM_MAX_TOKENS", 512),
		DispatchWorkers:   envInt("DISPATCH_WORKERS", 4),
		DispatchQueueSize: envInt("DISPATCH_QUEUE_SIZE", 64),
		EvictBatch:        envInt("EVICT_BATCH", 100),
		MetricsEnabled:    os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:       envOr("METRICS_PATH", "/metrics"),
		MetricsPort:       envOr("METRICS_PORT", "9090"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		BreakerThreshold:  envInt("CIRCUIT_BREAKER_THRESHOLD", 5),

		DispatchTimeoutStr:     envOr("DISPATCH_TIMEOUT", "30s"),
		JobTTLStr:              envOr("JOB_TTL", "10m"),
		EvictIntervalStr:       envOr("EVICT_INTERVAL", "1m"),
		AnalyticsRetentionStr:  envOr("ANALYTICS_RETENTION", "168h"),
		DBOpTimeoutStr:         envOr("DB_OP_TIMEOUT", "5s"),
		BreakerCooldownStr:     envOr("CIRCUIT_BREAKER_COOLDOWN", "2m"),
		HTTPShutdownTimeoutStr: envOr("HTTP_SHUTDOWN_TIMEOUT", "10s"),
	}

	cfg.DispatchTimeout = parseDuration(cfg.DispatchTimeoutStr)
	cfg.JobTTL = parseDuration(cfg.JobTTLStr)
	cfg.EvictInterval = parseDuration(cfg.EvictIntervalStr)
	cfg.AnalyticsRetention = parseDuration(cfg.AnalyticsRetentionStr)
	cfg.DBOpTimeout = parseDuration(cfg.DBOpTimeoutStr)
	cfg.BreakerCooldown = parseDuration(cfg.BreakerCooldownStr)
	cfg.HTTPShutdownTimeout = parseDuration(cfg.HTTPShutdownTimeoutStr)

	return cfg
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	if masked.JWTSecret != "" {
		masked.JWTSecret = "***"
	}
	masked.DatabaseURL = maskSecret(masked.DatabaseURL)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
