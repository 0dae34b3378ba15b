// Package config provides configuration models and helpers for ingestion runs.
//
// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"tripingest/internal/dataset"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "source.month"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	r, err := config.Load(path)
//	if err != nil { ... }
//	issues := config.ValidateRun(r)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidateRun(r Run) []Issue {
	var issues []Issue

	issues = append(issues, validateSource(r.Source)...)
	issues = append(issues, validateLoad(r.Load)...)
	issues = append(issues, validateStorage(r.Storage)...)
	issues = append(issues, validateMetrics(r.Metrics)...)

	return issues
}

// validateSource validates source configuration.
func validateSource(s SourceConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Dataset) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.dataset",
			Message:  "source.dataset must not be empty",
		})
		return issues
	}

	ds, err := dataset.Lookup(s.Dataset)
	if err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.dataset",
			Message:  fmt.Sprintf("unknown dataset %q; known datasets: %s", s.Dataset, strings.Join(dataset.Names(), ", ")),
		})
		return issues
	}

	if _, err := dataset.ParseFormat(s.Format); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.format",
			Message:  err.Error(),
		})
	}

	// year/month only matter when the URL is resolved from the dataset.
	if ds.Monthly && s.URL == "" && s.Path == "" {
		if s.Year < 2009 || s.Year > 2100 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.year",
				Message:  fmt.Sprintf("year=%d is outside the published range for dataset %q", s.Year, ds.Name),
			})
		}
		if s.Month < 1 || s.Month > 12 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.month",
				Message:  fmt.Sprintf("month=%d must be between 1 and 12", s.Month),
			})
		}
	}

	if s.URL != "" && s.Path != "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.url",
			Message:  "source.url and source.path are mutually exclusive",
		})
	}
	if s.URL != "" && !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.url",
			Message:  fmt.Sprintf("url %q does not look like an HTTP(S) URL", s.URL),
		})
	}

	return issues
}

// validateLoad validates batching configuration.
func validateLoad(l LoadConfig) []Issue {
	var issues []Issue

	if l.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; batch size must be positive", l.ChunkSize),
		})
	} else if l.ChunkSize < 1000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "load.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d is very small; throughput will suffer", l.ChunkSize),
		})
	}

	return issues
}

// validateStorage validates storage configuration and DB settings.
func validateStorage(s StorageConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	switch s.Kind {
	case "sqlite":
		if strings.TrimSpace(s.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.dsn",
				Message:  "sqlite storage requires storage.dsn (the database file path)",
			})
		}
	default:
		// Server-based backends: either an explicit DSN or enough DB
		// fields to compose one.
		if strings.TrimSpace(s.DSN) == "" {
			if strings.TrimSpace(s.DB.Host) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.host",
					Message:  "storage.db.host must not be empty when storage.dsn is unset",
				})
			}
			if strings.TrimSpace(s.DB.Name) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.name",
					Message:  "storage.db.name must not be empty when storage.dsn is unset",
				})
			}
			if strings.TrimSpace(s.DB.User) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.user",
					Message:  "storage.db.user must not be empty when storage.dsn is unset",
				})
			}
			if strings.TrimSpace(s.DB.Password) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.password",
					Message:  "storage.db.password must not be empty when storage.dsn is unset",
				})
			}
			if s.DB.Port < 0 || s.DB.Port > 65535 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.port",
					Message:  fmt.Sprintf("port=%d is not a valid TCP port", s.DB.Port),
				})
			}
		}
	}

	return issues
}

// validateMetrics validates the optional metrics backend selection.
func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none":
		// metrics disabled
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus metrics backend requires metrics.pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.StatsdAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.statsd_addr",
				Message:  "datadog metrics backend requires metrics.statsd_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; expected none, prometheus, or datadog", m.Backend),
		})
	}

	return issues
}
