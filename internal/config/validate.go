package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a Config for structural and semantic errors. It returns a
// slice of all validation errors found (empty if valid). Model names are not
// checked here; the backend client owns its catalog.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Backend.StudioURL == "" {
		errs = append(errs, ValidationError{Field: "backend.studio_url", Message: "is required"})
	} else if u, err := url.Parse(cfg.Backend.StudioURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{Field: "backend.studio_url", Message: fmt.Sprintf("invalid URL %q", cfg.Backend.StudioURL)})
	}
	if cfg.Backend.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "backend.max_tokens", Message: "must not be negative"})
	}
	if cfg.Backend.MonthlyQuota < 0 {
		errs = append(errs, ValidationError{Field: "backend.monthly_quota", Message: "must not be negative"})
	}
	if cfg.Backend.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Backend.Timeout); err != nil {
			errs = append(errs, ValidationError{Field: "backend.timeout", Message: fmt.Sprintf("invalid duration %q", cfg.Backend.Timeout)})
		}
	}

	switch cfg.Database.Driver {
	case "sqlite3":
	case "postgres":
		if cfg.Database.DSN == "" {
			errs = append(errs, ValidationError{Field: "database.dsn", Message: "is required for the postgres driver"})
		}
	default:
		errs = append(errs, ValidationError{Field: "database.driver", Message: fmt.Sprintf("unrecognized driver %q (want sqlite3 or postgres)", cfg.Database.Driver)})
	}

	if cfg.Limits.LogTail < 0 {
		errs = append(errs, ValidationError{Field: "limits.log_tail", Message: "must not be negative"})
	}
	if cfg.Limits.MaxFileBytes < 0 {
		errs = append(errs, ValidationError{Field: "limits.max_file_bytes", Message: "must not be negative"})
	}
	if cfg.Limits.MaxAnalysisFiles < 0 {
		errs = append(errs, ValidationError{Field: "limits.max_analysis_files", Message: "must not be negative"})
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unrecognized level %q", cfg.Logging.Level)})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unrecognized format %q (want json or console)", cfg.Logging.Format)})
	}

	return errs
}
