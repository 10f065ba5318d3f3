package domain

import (
	"context"
	"errors"
	"fmt"
)

// ConfigCorruptError reports an unparseable config file. Recovery is backing
// the file up and regenerating defaults; it never crashes the process.
type ConfigCorruptError struct {
	Path       string
	BackupPath string
	Err        error
}

func (e *ConfigCorruptError) Error() string {
	return fmt.Sprintf("config file %s is corrupt (backed up to %s): %v", e.Path, e.BackupPath, e.Err)
}

func (e *ConfigCorruptError) Unwrap() error { return e.Err }

// IsConfigCorrupt reports whether err is a ConfigCorruptError.
func IsConfigCorrupt(err error) bool {
	var target *ConfigCorruptError
	return errors.As(err, &target)
}

// UnknownBackendError reports a backend id with no registered adapter.
// Suggestion carries the nearest registered id when one is close enough.
type UnknownBackendError struct {
	ID         BackendID
	Suggestion BackendID
}

func (e *UnknownBackendError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown backend %q (did you mean %q?)", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("unknown backend %q", e.ID)
}

// IsUnknownBackend reports whether err is an UnknownBackendError.
func IsUnknownBackend(err error) bool {
	var target *UnknownBackendError
	return errors.As(err, &target)
}

// BackendError wraps a failed adapter call. Hint, when set, is a short
// user-facing remedy ("start it with \"ollama serve\"").
type BackendError struct {
	Backend BackendID
	Hint    string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s backend: %v (%s)", e.Backend, e.Err, e.Hint)
	}
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err is a BackendError.
func IsBackendError(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// ErrClipboardUnavailable marks sink failures. Non-fatal: the result is
// still shown, the user just has to copy it by hand.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// KindOf maps an error to its presentation-layer class.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	case IsUnknownBackend(err):
		return ErrKindUnknownBackend
	case IsBackendError(err):
		return ErrKindBackend
	case errors.Is(err, ErrClipboardUnavailable):
		return ErrKindClipboard
	default:
		return ErrKindInternal
	}
}
