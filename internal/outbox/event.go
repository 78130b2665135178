package outbox

import (
	"encoding/json"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
)

// Topic names, one event type per topic.
const (
	TopicAppointmentCreated     = "scheduling.appointment.created.v1"
	TopicAppointmentConfirmed   = "scheduling.appointment.confirmed.v1"
	TopicAppointmentRescheduled = "scheduling.appointment.rescheduled.v1"
	TopicAppointmentCancelled   = "scheduling.appointment.cancelled.v1"
	TopicAppointmentCompleted   = "scheduling.appointment.completed.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the wire body for every appointment event.
type AppointmentPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	ProviderID      string    `json:"provider_id"`
	CustomerID      string    `json:"customer_id"`
	ServiceRefs     []string  `json:"service_refs,omitempty"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	TotalPrice      string    `json:"total_price,omitempty"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// AppointmentEvent builds the envelope for an appointment state change.
func AppointmentEvent(eventType string, appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID:   appt.ID,
		ProviderID:      appt.ProviderID,
		CustomerID:      appt.CustomerID,
		ServiceRefs:     appt.ServiceRefs,
		StartTime:       appt.StartTime,
		DurationMinutes: appt.DurationMinutes,
		Status:          string(appt.Status),
		TotalPrice:      appt.TotalPrice,
		CancelReason:    appt.CancelReason,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// EventTypeFor maps an appointment status change to its topic. Rescheduling
// keeps the status, so callers pass rescheduled=true for that case.
func EventTypeFor(status model.Status, rescheduled bool) string {
	if rescheduled {
		return TopicAppointmentRescheduled
	}
	switch status {
	case model.StatusPending:
		return TopicAppointmentCreated
	case model.StatusConfirmed:
		return TopicAppointmentConfirmed
	case model.StatusCancelled:
		return TopicAppointmentCancelled
	case model.StatusCompleted:
		return TopicAppointmentCompleted
	}
	return ""
}
