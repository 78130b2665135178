package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arafat-hossain/barberbook/internal/conflict"
	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
)

// MemoryStore is a mutex-guarded implementation of the scheduling ports.
// The single lock gives the same atomicity the Postgres adapter gets from
// its transaction plus exclusion constraint: check and insert are one
// critical section, so concurrent bookings of the same slot see exactly one
// winner. Used in tests and as a standalone-mode backend.
type MemoryStore struct {
	mu           sync.Mutex
	appointments map[string]model.Appointment
	windows      map[string][]model.AvailabilityWindow
	providers    map[string]model.Provider
	idempotency  map[string]string // customerID+"\x00"+key -> appointment id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[string]model.Appointment),
		windows:      make(map[string][]model.AvailabilityWindow),
		providers:    make(map[string]model.Provider),
		idempotency:  make(map[string]string),
	}
}

var _ scheduling.Ledger = (*MemoryStore)(nil)
var _ scheduling.AvailabilityStore = (*MemoryStore)(nil)

func (m *MemoryStore) Insert(ctx context.Context, appt model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := m.idempotency[appt.CustomerID+"\x00"+idempotencyKey]; ok {
			return m.appointments[id], true, nil
		}
	}

	buffered := conflict.Buffered(appt.StartTime, appt.DurationMinutes)
	for _, other := range m.appointments {
		if other.ProviderID != appt.ProviderID || other.Status == model.StatusCancelled {
			continue
		}
		if buffered.Overlaps(conflict.Occupied(other)) {
			return model.Appointment{}, false, fmt.Errorf("%w: provider %s at %s",
				scheduling.ErrSlotConflict, appt.ProviderID, appt.StartTime.Format(time.RFC3339))
		}
	}

	appt.ID = uuid.NewString()
	appt.CreatedAt = time.Now().UTC()
	m.appointments[appt.ID] = appt
	if idempotencyKey != "" {
		m.idempotency[appt.CustomerID+"\x00"+idempotencyKey] = appt.ID
	}
	return appt, false, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", scheduling.ErrNotFound, id)
	}
	return appt, nil
}

func (m *MemoryStore) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	span := conflict.Interval{Start: start, End: end}
	var out []model.Appointment
	for _, appt := range m.appointments {
		if appt.ProviderID != providerID || appt.Status == model.StatusCancelled || appt.ID == excludeID {
			continue
		}
		if span.Overlaps(conflict.Occupied(appt)) {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, q scheduling.ListQuery) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, appt := range m.appointments {
		if q.CustomerID != "" && appt.CustomerID != q.CustomerID {
			continue
		}
		if q.ProviderID != "" && appt.ProviderID != q.ProviderID {
			continue
		}
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from []model.Status, to model.Status, reason string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", scheduling.ErrNotFound, id)
	}
	allowed := false
	for _, f := range from {
		if appt.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", scheduling.ErrInvalidTransition, appt.Status, to)
	}
	appt.Status = to
	if to == model.StatusCancelled {
		now := time.Now().UTC()
		appt.CancelReason = reason
		appt.CancelledAt = &now
	}
	m.appointments[id] = appt
	return appt, nil
}

func (m *MemoryStore) Reschedule(ctx context.Context, id string, newStart time.Time, newDurationMinutes int) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", scheduling.ErrNotFound, id)
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, fmt.Errorf("%w: cannot reschedule a %s appointment", scheduling.ErrInvalidTransition, appt.Status)
	}

	buffered := conflict.Buffered(newStart, newDurationMinutes)
	for _, other := range m.appointments {
		if other.ID == id || other.ProviderID != appt.ProviderID || other.Status == model.StatusCancelled {
			continue
		}
		if buffered.Overlaps(conflict.Occupied(other)) {
			return model.Appointment{}, fmt.Errorf("%w: provider %s at %s",
				scheduling.ErrSlotConflict, appt.ProviderID, newStart.Format(time.RFC3339))
		}
	}

	appt.StartTime = newStart
	appt.DurationMinutes = newDurationMinutes
	m.appointments[id] = appt
	return appt, nil
}

func (m *MemoryStore) Provider(ctx context.Context, providerID string) (model.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[providerID]
	if !ok {
		return model.Provider{}, fmt.Errorf("%w: provider %s", scheduling.ErrNotFound, providerID)
	}
	return p, nil
}

func (m *MemoryStore) PutProvider(p model.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *MemoryStore) Windows(ctx context.Context, providerID string, weekday time.Weekday) ([]model.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailabilityWindow
	for _, win := range m.windows[providerID] {
		if win.Weekday == weekday {
			out = append(out, win)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (m *MemoryStore) ReplaceWindows(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[providerID]; !ok {
		return fmt.Errorf("%w: provider %s", scheduling.ErrNotFound, providerID)
	}
	m.windows[providerID] = append([]model.AvailabilityWindow(nil), windows...)
	return nil
}
