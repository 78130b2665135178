package model

import "time"

// Status is the appointment lifecycle state. Appointments are never deleted;
// cancellation is a status transition so history survives.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID              string
	ProviderID      string
	CustomerID      string
	ServiceRefs     []string
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	TotalPrice      string
	CancelReason    string
	CancelledAt     *time.Time
	CreatedAt       time.Time
}

// EndTime is the exclusive end of the occupied interval [StartTime, EndTime).
func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
