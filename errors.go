package stream_archiver

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for a run. Navigation failures are fatal; everything else is
// scoped to a single item and must leave the run able to continue.

// A NavigationError means the target page could not be reached or did not
// contain the expected content grid. Aborts the run.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %v failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// An ExtractionError means a single grid item's metadata could not be parsed
// into a VideoRecord. The item is skipped.
type ExtractionError struct {
	Field string // which extraction step failed, e.g. "uuid", "date"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %v: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// An InteractionError means the UI controls needed to trigger a download did
// not appear (or could not be activated) within the bounded wait. The item is
// skipped; it must never be treated as downloaded.
type InteractionError struct {
	Stage string // which gesture failed, e.g. "reveal menu"
	Err   error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("interaction failed at %v: %v", e.Stage, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// A CorrelationTimeout means no matching download notification arrived within
// the configured bound after triggering an item. The item is skipped.
type CorrelationTimeout struct {
	UUID    string
	Phase   string // "start" or "progress"
	Elapsed time.Duration
}

func (e *CorrelationTimeout) Error() string {
	return fmt.Sprintf("no download %v notification for %v within %v", e.Phase, e.UUID, e.Elapsed)
}

// A PersistenceError means a ledger or session file operation failed. Never
// fatal: dedup checks fail open, and a lost ledger row only risks a future
// duplicate download.
type PersistenceError struct {
	Op   string // "read", "write", "rename", ...
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v %v: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsNavigationError(err error) bool {
	var e *NavigationError
	return errors.As(err, &e)
}

func IsExtractionError(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}

func IsInteractionError(err error) bool {
	var e *InteractionError
	return errors.As(err, &e)
}

func IsCorrelationTimeout(err error) bool {
	var e *CorrelationTimeout
	return errors.As(err, &e)
}

func IsPersistenceError(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}
