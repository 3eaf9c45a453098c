package model

import (
	"errors"
	"fmt"
)

// ContentUnusableError reports that crawled content was too poor to ground a
// knowledge representation. The tier tells downstream phases how far to
// degrade rather than whether to abort.
type ContentUnusableError struct {
	Domain string
	Tier   WarningTier
	Reason string
}

func (e *ContentUnusableError) Error() string {
	return fmt.Sprintf("content unusable for %s (%s): %s", e.Domain, e.Tier, e.Reason)
}

// IsContentUnusable reports whether err is a ContentUnusableError and
// returns it when so.
func IsContentUnusable(err error) (*ContentUnusableError, bool) {
	var cu *ContentUnusableError
	if errors.As(err, &cu) {
		return cu, true
	}
	return nil, false
}

// GenerationUnavailableError reports that the generation backend could not
// produce output, after retries and repair were exhausted.
type GenerationUnavailableError struct {
	Stage string
	Err   error
}

func (e *GenerationUnavailableError) Error() string {
	return fmt.Sprintf("generation unavailable during %s: %v", e.Stage, e.Err)
}

func (e *GenerationUnavailableError) Unwrap() error { return e.Err }

// PlatformUnavailableError reports that an assistant platform could not be
// queried live.
type PlatformUnavailableError struct {
	Platform Platform
	Err      error
}

func (e *PlatformUnavailableError) Error() string {
	return fmt.Sprintf("platform %s unavailable: %v", e.Platform, e.Err)
}

func (e *PlatformUnavailableError) Unwrap() error { return e.Err }

// SchemaViolationError reports that generated output did not match its
// expected shape even after a repair attempt.
type SchemaViolationError struct {
	Stage  string
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation in %s output: %s", e.Stage, e.Detail)
}

// StorageUnavailableError reports that the persistence layer rejected an
// operation. It is the only error class that can fail a run terminally.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// IsStorageUnavailable reports whether err wraps a StorageUnavailableError.
func IsStorageUnavailable(err error) bool {
	var su *StorageUnavailableError
	return errors.As(err, &su)
}
