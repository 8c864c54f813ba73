// Package etlerr defines the error taxonomy shared by every ingestion stage.
//
// Each failure carries a kind sentinel (ErrNotFound, ErrEmptyData,
// ErrConfiguration, ErrPersistence, ErrLayoutMismatch) and, when available, the
// underlying cause. Callers branch with errors.Is on either:
//
//	if errors.Is(err, etlerr.ErrEmptyDictionary) { ... }
//	if errors.Is(err, os.ErrNotExist) { ... }
package etlerr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrNotFound       = errors.New("not found")
	ErrEmptyData      = errors.New("empty data")
	ErrConfiguration  = errors.New("configuration error")
	ErrPersistence    = errors.New("persistence error")
	ErrLayoutMismatch = errors.New("layout mismatch")
)

// Specific sentinels; each one matches its kind under errors.Is.
var (
	ErrDictionaryNotFound = fmt.Errorf("dictionary source %w", ErrNotFound)
	ErrSourceNotFound     = fmt.Errorf("fixed-width source %w", ErrNotFound)
	ErrEmptyDictionary    = fmt.Errorf("dictionary has no valid entries: %w", ErrEmptyData)
	ErrEmptyStaging       = fmt.Errorf("staging relation has no columns: %w", ErrEmptyData)
)

// Error is a classified failure of a single operation.
type Error struct {
	Op   string // operation, e.g. "load dictionary"
	Path string // file path or relation name, optional
	Kind error  // one of the sentinels above
	Err  error  // underlying cause, optional
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New classifies cause under kind.
func New(op, path string, kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// Persistence wraps a DDL/DML failure. A nil cause yields nil.
func Persistence(op, relation string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Path: relation, Kind: ErrPersistence, Err: cause}
}

// Configuration reports missing or invalid settings.
func Configuration(format string, args ...any) error {
	return &Error{Op: "configuration", Kind: ErrConfiguration, Err: fmt.Errorf(format, args...)}
}
