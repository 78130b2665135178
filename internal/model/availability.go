package model

import "time"

// AvailabilityWindow is one recurring weekly opening in a provider's
// schedule. Times are wall-clock minutes from midnight with no date attached;
// a provider may have several non-overlapping windows per weekday.
type AvailabilityWindow struct {
	ProviderID  string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

const minutesPerDay = 24 * 60

// Valid checks the structural invariants: start before end, both within the
// day, minute granularity is implied by the integer representation.
func (w AvailabilityWindow) Valid() bool {
	return w.StartMinute >= 0 &&
		w.EndMinute <= minutesPerDay &&
		w.StartMinute < w.EndMinute &&
		w.Weekday >= time.Sunday && w.Weekday <= time.Saturday
}

// StartOn anchors the window's opening time onto a concrete calendar date.
func (w AvailabilityWindow) StartOn(date time.Time) time.Time {
	return dayStart(date).Add(time.Duration(w.StartMinute) * time.Minute)
}

// EndOn anchors the window's closing time onto a concrete calendar date.
func (w AvailabilityWindow) EndOn(date time.Time) time.Time {
	return dayStart(date).Add(time.Duration(w.EndMinute) * time.Minute)
}

// Overlaps reports whether two windows on the same weekday share any time.
// Touching boundaries do not overlap (half-open intervals).
func (w AvailabilityWindow) Overlaps(other AvailabilityWindow) bool {
	if w.Weekday != other.Weekday {
		return false
	}
	return w.StartMinute < other.EndMinute && other.StartMinute < w.EndMinute
}

func dayStart(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
}

// Provider is the service professional whose calendar is scheduled against.
// AcceptingBookings mirrors the provider's availability toggle maintained from
// identity-service events; when false, no new appointments may be created.
type Provider struct {
	ID                string
	DisplayName       string
	AcceptingBookings bool
}

// Slot is a derived, never-persisted candidate start time. Recomputed on
// every listing from the availability windows plus the appointment set.
type Slot struct {
	StartTime time.Time
	Available bool
}
