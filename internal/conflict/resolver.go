// Package conflict decides whether a candidate appointment time is free.
// It computes intervals and asks the ledger; business errors are raised by
// the scheduling layer, never here.
package conflict

import (
	"context"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
)

// Buffer is the fixed margin applied before and after a candidate
// appointment, independent of service duration.
const Buffer = 30 * time.Minute

// Interval is a half-open time range [Start, End). Touching boundaries do
// not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Buffered returns the conflict-comparison range for a candidate:
// [start-Buffer, start+duration+Buffer). Existing appointments are compared
// by their raw occupied interval against this widened one.
func Buffered(start time.Time, durationMinutes int) Interval {
	return Interval{
		Start: start.Add(-Buffer),
		End:   start.Add(time.Duration(durationMinutes)*time.Minute + Buffer),
	}
}

// Occupied returns the raw interval an appointment holds on the calendar.
func Occupied(a model.Appointment) Interval {
	return Interval{Start: a.StartTime, End: a.EndTime()}
}

// FreeAgainst reports whether a candidate is free given a pre-loaded busy
// set. Used by slot listing, where one ledger read serves many candidates.
func FreeAgainst(busy []Interval, start time.Time, durationMinutes int) bool {
	buffered := Buffered(start, durationMinutes)
	for _, b := range busy {
		if buffered.Overlaps(b) {
			return false
		}
	}
	return true
}

// OverlapFinder is the slice of the booking ledger the resolver needs:
// non-cancelled appointments whose occupied interval intersects [start, end),
// optionally excluding one appointment id (reschedule-self).
type OverlapFinder interface {
	FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]model.Appointment, error)
}

type Resolver struct {
	ledger OverlapFinder
}

func NewResolver(ledger OverlapFinder) *Resolver {
	return &Resolver{ledger: ledger}
}

// IsFree checks the candidate's buffered interval against the ledger.
// excludeID, when non-empty, drops that appointment from consideration so an
// appointment never conflicts with itself.
func (r *Resolver) IsFree(ctx context.Context, providerID string, start time.Time, durationMinutes int, excludeID string) (bool, error) {
	buffered := Buffered(start, durationMinutes)
	overlapping, err := r.ledger.FindOverlapping(ctx, providerID, buffered.Start, buffered.End, excludeID)
	if err != nil {
		return false, err
	}
	return len(overlapping) == 0, nil
}
