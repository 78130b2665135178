package scheduling

import "errors"

// Every booking failure maps to exactly one of these sentinels so callers can
// branch with errors.Is. All of them are request-scoped; none is fatal.
var (
	// ErrInvalidRequest marks malformed or missing input. Not retryable.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrProviderUnavailable means the provider has bookings disabled or the
	// requested time falls outside every availability window.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSlotConflict means the buffered interval is occupied, including
	// losing a booking race. Clients should re-query fresh slots.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrNotFound marks an unknown provider or appointment id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition marks a lifecycle move the state machine forbids,
	// e.g. confirming a cancelled appointment.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable wraps transient infrastructure failures. Read-only
	// calls may be retried; mutating calls must be resubmitted deliberately.
	ErrStoreUnavailable = errors.New("store unavailable")
)
