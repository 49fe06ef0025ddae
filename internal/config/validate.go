package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind").
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

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownStorage = map[string]struct{}{
	"mysql":    {},
	"postgres": {},
	"sqlite":   {},
	"mssql":    {},
}

// Validate lints c without mutating it.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job is empty; metrics will use the default job name"})
	}
	if strings.TrimSpace(c.Table) == "" {
		issues = append(issues, Issue{SeverityError, "table", "table must not be empty"})
	}
	if c.BatchSize < 1 {
		issues = append(issues, Issue{SeverityError, "batch_size", fmt.Sprintf("batch_size must be >= 1, got %d", c.BatchSize)})
	}
	if c.MaxRows < 0 {
		issues = append(issues, Issue{SeverityError, "max_rows", fmt.Sprintf("max_rows must be >= 0, got %d", c.MaxRows)})
	}
	if _, err := record.ParseSeverityPolicy(c.SeverityOverflow); err != nil {
		issues = append(issues, Issue{SeverityError, "severity_overflow", err.Error()})
	}

	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			issues = append(issues, Issue{SeverityError, "log.level", err.Error()})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if _, ok := knownStorage[s.Kind]; !ok {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unsupported storage kind %q (want mysql, postgres, sqlite or mssql)", s.Kind),
		})
	}

	if strings.TrimSpace(s.DSN) != "" {
		return issues
	}
	if s.Kind != "mysql" {
		return append(issues, Issue{SeverityError, "storage.dsn", fmt.Sprintf("storage kind %q requires a dsn", s.Kind)})
	}
	if strings.TrimSpace(s.Host) == "" {
		issues = append(issues, Issue{SeverityError, "storage.host", "host must not be empty when dsn is not set"})
	}
	if s.Port < 1 || s.Port > 65535 {
		issues = append(issues, Issue{SeverityError, "storage.port", fmt.Sprintf("port must be in 1..65535, got %d", s.Port)})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "prometheus", "pushgateway", "datadog":
		return nil
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		}}
	}
}
