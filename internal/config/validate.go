package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"fwingest/internal/etlerr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind"). Message is
// human-readable.
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

// Storage kinds with a built-in backend.
var knownStorageKinds = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
	"mssql":    {},
}

var dictionaryExts = map[string]struct{}{
	".csv": {}, ".tsv": {}, ".txt": {}, ".xlsx": {}, ".xlsm": {},
}

// Validate performs static checks over c without touching the filesystem or
// the database. Callers decide whether warnings are fatal; Check treats only
// errors as fatal.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics and logs will not identify the run")
	}

	// Dictionary.
	if c.Dictionary.Path == "" {
		add(SeverityWarning, "dictionary.path", "no dictionary source; load-dictionary and run will fail")
	} else if _, ok := dictionaryExts[strings.ToLower(filepath.Ext(c.Dictionary.Path))]; !ok {
		add(SeverityError, "dictionary.path", "unsupported dictionary format %q", filepath.Ext(c.Dictionary.Path))
	}
	if c.Dictionary.SkipRows < 0 {
		add(SeverityError, "dictionary.skip_rows", "must be >= 0, got %d", c.Dictionary.SkipRows)
	}
	if d := c.Dictionary.Delimiter; d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			add(SeverityError, "dictionary.delimiter", "must be a single character other than quote or newline, got %q", d)
		}
	}

	// Source.
	if c.Source.Path == "" && c.Source.Archive == "" {
		add(SeverityWarning, "source", "neither source.path nor source.archive is set; stage and run will fail")
	}
	if c.Source.Member != "" && c.Source.Archive == "" {
		add(SeverityWarning, "source.member", "member is ignored without source.archive")
	}
	if c.Source.Archive != "" && !strings.EqualFold(filepath.Ext(c.Source.Archive), ".zip") {
		add(SeverityError, "source.archive", "only .zip archives are supported, got %q", filepath.Base(c.Source.Archive))
	}

	// Relations.
	tables := []struct{ path, name string }{
		{"dictionary.table", c.DictionaryTable()},
		{"staging.table", c.StagingTable()},
		{"target.table", c.TargetTable()},
	}
	seen := map[string]string{}
	for _, t := range tables {
		if strings.TrimSpace(t.name) == "" {
			add(SeverityError, t.path, "table name must not be empty")
			continue
		}
		key := strings.ToLower(t.name)
		if prev, dup := seen[key]; dup {
			add(SeverityError, t.path, "relation %q is also used by %s", t.name, prev)
			continue
		}
		seen[key] = t.path
	}
	if c.Staging.BatchSize <= 0 {
		add(SeverityError, "staging.batch_size", "must be > 0, got %d", c.Staging.BatchSize)
	}

	// Storage.
	switch {
	case strings.TrimSpace(c.Storage.Kind) == "":
		add(SeverityError, "storage.kind", "storage.kind must not be empty")
	default:
		if _, ok := knownStorageKinds[c.Storage.Kind]; !ok {
			add(SeverityWarning, "storage.kind", "unknown storage kind %q; ensure a matching backend is registered", c.Storage.Kind)
		}
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "no DSN; set storage.dsn, %s or the POSTGRES_* variables", EnvDSN)
	}

	// Metrics.
	switch c.Metrics.Backend {
	case "", "none":
	case "prometheus":
		if c.Metrics.PushgatewayURL == "" {
			add(SeverityError, "metrics.pushgateway_url", "prometheus backend requires a Pushgateway URL")
		}
	case "datadog":
		if c.Metrics.DatadogAddr == "" {
			add(SeverityError, "metrics.datadog_addr", "datadog backend requires a DogStatsD address")
		}
	default:
		add(SeverityError, "metrics.backend", "unknown metrics backend %q (want none, prometheus or datadog)", c.Metrics.Backend)
	}

	return issues
}

// Check returns an etlerr.ErrConfiguration error listing every error-level
// issue, or nil when there are none.
func Check(issues []Issue) error {
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return etlerr.Configuration("%s", strings.Join(msgs, "; "))
}
