package cache

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failure an Error reports.
type Kind int

const (
	// ConfigInvalid covers a missing required option, a nonpositive
	// page_size, a zero-sized shard, or an empty caches list.
	ConfigInvalid Kind = iota
	// BackingIO covers any failure from the backing file (open, read,
	// write, seek, truncate, fsync).
	BackingIO
	// StagingIO covers any failure from the staging directory.
	StagingIO
	// EvictionFailed means a dirty writeback failed; the victim must
	// remain resident and dirty.
	EvictionFailed
	// Invariant means the engine detected index/disk disagreement.
	// It is fatal: the engine may refuse further operations on the
	// affected shard.
	Invariant
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case BackingIO:
		return "BackingIO"
	case StagingIO:
		return "StagingIO"
	case EvictionFailed:
		return "EvictionFailed"
	case Invariant:
		return "Invariant"
	default:
		return "Unknown"
	}
}

// Error is the single error type the engine surfaces to callers. It
// wraps an underlying cause (when one exists) via github.com/pkg/errors
// so callers can still recover the original os.PathError etc. with
// errors.As. Error has no Cause method, so github.com/pkg/errors.Cause
// returns the *Error itself rather than the wrapped cause.
type Error struct {
	Kind    Kind
	Path    string // backing path involved, if any
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache: %s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("cache: %s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, path, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, message)
	}
	return &Error{Kind: kind, Path: path, Message: message, cause: wrapped}
}

func configErr(format string, args ...interface{}) *Error {
	return newErr(ConfigInvalid, "", fmt.Sprintf(format, args...), nil)
}

func backingErr(path string, cause error) *Error {
	return newErr(BackingIO, path, "backing file operation failed", cause)
}

func stagingErr(path string, cause error) *Error {
	return newErr(StagingIO, path, "staging store operation failed", cause)
}

func evictionErr(path string, cause error) *Error {
	return newErr(EvictionFailed, path, "dirty writeback failed during eviction", cause)
}

func invariantErr(format string, args ...interface{}) *Error {
	return newErr(Invariant, "", fmt.Sprintf(format, args...), nil)
}

// ErrDirectoryBusy is returned by New when the staging directory is
// already held by another engine instance.
var ErrDirectoryBusy = configErr("cache_dir is held by another kcfs instance")
