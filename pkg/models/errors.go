package models

import "errors"

var (
	// ErrInvalidIdentifier is returned for malformed recall numbers. No I/O
	// is attempted.
	ErrInvalidIdentifier = errors.New("invalid recall identifier")
	// ErrRecallNotFound means neither the cache nor the registry knows the recall.
	ErrRecallNotFound = errors.New("recall not found")
	// ErrRecallUnavailable is a transient failure with nothing cached to serve.
	ErrRecallUnavailable = errors.New("recall unavailable")

	// ErrNotFound is returned by the upstream client when the registry has
	// no record. Terminal.
	ErrNotFound = errors.New("upstream: not found")
	// ErrUpstreamUnavailable covers network, timeout and 5xx failures. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrGenerationFailed is returned when no provider produced a summary.
	ErrGenerationFailed = errors.New("summary generation failed")
	// ErrStorageUnavailable wraps cache read/write failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrLockHeld means another instance holds the regeneration lock.
	ErrLockHeld = errors.New("regeneration lock held elsewhere")
)
