package scheduling

import (
	"context"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
)

// Ledger is the authoritative appointment set per provider and the only
// place double-booking can be prevented. Implementations own atomicity: the
// overlap check and the write happen as one unit inside Insert, Reschedule
// and UpdateStatus, never as separate calls from the orchestrator. A lost
// race surfaces as ErrSlotConflict.
type Ledger interface {
	// Insert conflict-checks the appointment's buffered interval and, when
	// free, persists it with a fresh id. When idempotencyKey is non-empty and
	// was already finalized for this customer, the previously created
	// appointment is returned with replayed=true and nothing is written.
	Insert(ctx context.Context, appt model.Appointment, idempotencyKey string) (created model.Appointment, replayed bool, err error)

	Get(ctx context.Context, id string) (model.Appointment, error)

	// FindOverlapping returns non-cancelled appointments of the provider whose
	// occupied interval intersects [start, end), excluding excludeID if set.
	FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]model.Appointment, error)

	List(ctx context.Context, q ListQuery) ([]model.Appointment, error)

	// UpdateStatus moves the appointment to the target status only if its
	// current status is one of from, atomically. Returns ErrNotFound for an
	// unknown id and ErrInvalidTransition when the current status disallows
	// the move.
	UpdateStatus(ctx context.Context, id string, from []model.Status, to model.Status, reason string) (model.Appointment, error)

	// Reschedule atomically re-runs the overlap check against the new
	// interval (excluding the appointment's own row) and updates start and
	// duration in place, preserving id and status.
	Reschedule(ctx context.Context, id string, newStart time.Time, newDurationMinutes int) (model.Appointment, error)
}

// ListQuery scopes an appointment listing. Exactly one of CustomerID or
// ProviderID is expected to be set.
type ListQuery struct {
	CustomerID string
	ProviderID string
	Limit      int
}

// AvailabilityStore holds recurring weekly availability. Read-mostly;
// implementations may cache Windows as long as ReplaceWindows invalidates.
type AvailabilityStore interface {
	Provider(ctx context.Context, providerID string) (model.Provider, error)

	// Windows returns the provider's windows for one weekday, ordered by
	// start time. An empty result means the provider is closed that day.
	Windows(ctx context.Context, providerID string, weekday time.Weekday) ([]model.AvailabilityWindow, error)

	// ReplaceWindows overwrites the provider's whole weekly schedule with the
	// given set, all-or-nothing. Callers pass the complete desired set; this
	// is never a merge. ErrNotFound for an unknown provider.
	ReplaceWindows(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error
}

// PriceResolver quotes a total price for a set of catalog service refs.
// Implemented by the catalog service client; nil-able (price then stays "0").
type PriceResolver interface {
	TotalPrice(ctx context.Context, serviceRefs []string) (string, error)
}
