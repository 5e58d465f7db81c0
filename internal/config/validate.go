package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.JWTSecret == "" {
		errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "required"})
	}

	for _, u := range []struct{ field, value string }{
		{"PUBLIC_BASE_URL", cfg.PublicBaseURL},
		{"ASR_SERVICE_URL", cfg.ASRServiceURL},
		{"LLM_SERVICE_URL", cfg.LLMServiceURL},
		{"STORAGE_SERVICE_URL", cfg.StorageServiceURL},
	} {
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, ValidationError{
				Field:   u.field,
				Message: fmt.Sprintf("must be an absolute URL, got %q", u.value),
			})
		}
	}

	for _, d := range []struct {
		field string
		raw   string
	}{
		{"DISPATCH_TIMEOUT", cfg.DispatchTimeoutStr},
		{"JOB_TTL", cfg.JobTTLStr},
		{"EVICT_INTERVAL", cfg.EvictIntervalStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.BreakerCooldownStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
	} {
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if v <= 0 {
			errs = append(errs, ValidationError{Field: d.field, Message: "must be positive"})
		}
	}

	if cfg.MicGain <= 0 {
		errs = append(errs, ValidationError{Field: "MIC_GAIN", Message: "must be positive"})
	}
	if cfg.MicSampleRate <= 0 {
		errs = append(errs, ValidationError{Field: "MIC_SAMPLE_RATE", Message: "must be positive"})
	}
	if cfg.LLMMaxTokens <= 0 {
		errs = append(errs, ValidationError{Field: "LLM_MAX_TOKENS", Message: "must be positive"})
	}
	if cfg.DispatchWorkers <= 0 {
		errs = append(errs, ValidationError{Field: "DISPATCH_WORKERS", Message: "must be positive"})
	}
	if cfg.DispatchQueueSize <= 0 {
		errs = append(errs, ValidationError{Field: "DISPATCH_QUEUE_SIZE", Message: "must be positive"})
	}
	if cfg.EvictBatch <= 0 {
		errs = append(errs, ValidationError{Field: "EVICT_BATCH", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
