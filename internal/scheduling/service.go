package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arafat-hossain/barberbook/internal/conflict"
	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/slotgen"
)

// Service orchestrates slot listing, booking and lifecycle transitions on
// top of the storage ports. It holds no appointment state of its own.
type Service struct {
	ledger       Ledger
	availability AvailabilityStore
	prices       PriceResolver
	resolver     *conflict.Resolver
	logger       *slog.Logger
}

func NewService(ledger Ledger, availability AvailabilityStore, prices PriceResolver, logger *slog.Logger) *Service {
	return &Service{
		ledger:       ledger,
		availability: availability,
		prices:       prices,
		resolver:     conflict.NewResolver(ledger),
		logger:       logger,
	}
}

// CreateRequest carries everything needed to book a slot. StartTime must be
// in UTC and aligned to a generated slot boundary within the provider's
// availability.
type CreateRequest struct {
	ProviderID      string
	CustomerID      string
	ServiceRefs     []string
	StartTime       time.Time
	DurationMinutes int
	IdempotencyKey  string
}

// ListAvailableSlots generates the provider's slot grid for date and marks
// each slot available or not against the non-cancelled appointments already
// on the books. Past slots are not filtered; the grid is a pure function of
// the schedule and the ledger.
func (s *Service) ListAvailableSlots(ctx context.Context, providerID string, date time.Time, durationMinutes int) ([]model.Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = int(slotgen.DefaultStep / time.Minute)
	}
	if _, err := s.availability.Provider(ctx, providerID); err != nil {
		return nil, err
	}
	windows, err := s.availability.Windows(ctx, providerID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []model.Slot{}, nil
	}

	starts := make([]time.Time, 0, 32)
	for _, win := range windows {
		starts = append(starts, slotgen.StartTimes(win, date, slotgen.DefaultStep)...)
	}
	if len(starts) == 0 {
		return []model.Slot{}, nil
	}

	// One ledger read covers every candidate: widen the day span by the
	// buffer on both sides so edge slots see their neighbours.
	spanStart := starts[0].Add(-conflict.Buffer)
	spanEnd := starts[len(starts)-1].Add(time.Duration(durationMinutes)*time.Minute + conflict.Buffer)
	busy, err := s.ledger.FindOverlapping(ctx, providerID, spanStart, spanEnd, "")
	if err != nil {
		return nil, err
	}
	occupied := make([]conflict.Interval, len(busy))
	for i, appt := range busy {
		occupied[i] = conflict.Occupied(appt)
	}

	slots := make([]model.Slot, len(starts))
	for i, start := range starts {
		slots[i] = model.Slot{
			StartTime: start,
			Available: conflict.FreeAgainst(occupied, start, durationMinutes),
		}
	}
	return slots, nil
}

// CreateAppointment books a slot as pending. Validation and the availability
// fit run up front; the decisive conflict check happens inside ledger.Insert
// so concurrent requests for the same slot cannot both win.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (model.Appointment, error) {
	if req.ProviderID == "" || req.CustomerID == "" {
		return model.Appointment{}, fmt.Errorf("%w: provider and customer are required", ErrInvalidRequest)
	}
	if req.DurationMinutes <= 0 {
		return model.Appointment{}, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	if req.StartTime.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: start time is required", ErrInvalidRequest)
	}
	start := req.StartTime.UTC()

	provider, err := s.availability.Provider(ctx, req.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !provider.AcceptingBookings {
		return model.Appointment{}, fmt.Errorf("%w: provider %s is not accepting bookings", ErrProviderUnavailable, req.ProviderID)
	}
	if err := s.fitsAvailability(ctx, req.ProviderID, start, req.DurationMinutes); err != nil {
		return model.Appointment{}, err
	}
	// Advisory fast-fail; the insert re-checks atomically, so a stale read
	// here can never admit a double booking. Skipped on keyed requests: a
	// retry's own prior booking occupies the slot, and only the ledger can
	// tell a replay from a conflict.
	if req.IdempotencyKey == "" {
		free, err := s.resolver.IsFree(ctx, req.ProviderID, start, req.DurationMinutes, "")
		if err != nil {
			return model.Appointment{}, err
		}
		if !free {
			return model.Appointment{}, fmt.Errorf("%w: provider is booked around %s", ErrSlotConflict, start.Format(time.RFC3339))
		}
	}

	total := "0"
	if s.prices != nil && len(req.ServiceRefs) > 0 {
		total, err = s.prices.TotalPrice(ctx, req.ServiceRefs)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("resolve total price: %w", err)
		}
	}

	appt := model.Appointment{
		ProviderID:      req.ProviderID,
		CustomerID:      req.CustomerID,
		ServiceRefs:     req.ServiceRefs,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		Status:          model.StatusPending,
		TotalPrice:      total,
	}
	created, replayed, err := s.ledger.Insert(ctx, appt, req.IdempotencyKey)
	if err != nil {
		return model.Appointment{}, err
	}
	if replayed {
		s.logger.InfoContext(ctx, "idempotent replay", "appointment_id", created.ID, "idempotency_key", req.IdempotencyKey)
		return created, nil
	}
	s.logger.InfoContext(ctx, "appointment created",
		"appointment_id", created.ID, "provider_id", created.ProviderID, "start_time", created.StartTime)
	return created, nil
}

// Reschedule moves a non-terminal appointment to a new start (and optionally
// a new duration), re-running availability and conflict checks with the
// appointment's own slot excluded, so rescheduling into one's current slot
// always succeeds.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time, newDurationMinutes int) (model.Appointment, error) {
	appt, err := s.ledger.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
	}
	if newDurationMinutes <= 0 {
		newDurationMinutes = appt.DurationMinutes
	}
	start := newStart.UTC()
	if start.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: new start time is required", ErrInvalidRequest)
	}
	if err := s.fitsAvailability(ctx, appt.ProviderID, start, newDurationMinutes); err != nil {
		return model.Appointment{}, err
	}
	free, err := s.resolver.IsFree(ctx, appt.ProviderID, start, newDurationMinutes, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !free {
		return model.Appointment{}, fmt.Errorf("%w: provider is booked around %s", ErrSlotConflict, start.Format(time.RFC3339))
	}

	updated, err := s.ledger.Reschedule(ctx, id, start, newDurationMinutes)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.InfoContext(ctx, "appointment rescheduled",
		"appointment_id", id, "start_time", updated.StartTime, "duration_minutes", updated.DurationMinutes)
	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusConfirmed, "")
}

func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCompleted, "")
}

// Cancel is terminal and frees the slot for other customers immediately.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCancelled, reason)
}

func (s *Service) transition(ctx context.Context, id string, to model.Status, reason string) (model.Appointment, error) {
	from := SourcesOf(to)
	if len(from) == 0 {
		return model.Appointment{}, fmt.Errorf("%w: no transition leads to %s", ErrInvalidTransition, to)
	}
	updated, err := s.ledger.UpdateStatus(ctx, id, from, to, reason)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.InfoContext(ctx, "appointment status changed", "appointment_id", id, "status", to)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	return s.ledger.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]model.Appointment, error) {
	if q.CustomerID == "" && q.ProviderID == "" {
		return nil, fmt.Errorf("%w: customer or provider scope is required", ErrInvalidRequest)
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	return s.ledger.List(ctx, q)
}

// ReplaceAvailability swaps the provider's whole weekly schedule. Windows
// must each be valid and must not overlap within a weekday.
func (s *Service) ReplaceAvailability(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error {
	for i := range windows {
		windows[i].ProviderID = providerID
		if !windows[i].Valid() {
			return fmt.Errorf("%w: window %d is invalid", ErrInvalidRequest, i)
		}
		for j := 0; j < i; j++ {
			if windows[i].Overlaps(windows[j]) {
				return fmt.Errorf("%w: windows %d and %d overlap", ErrInvalidRequest, j, i)
			}
		}
	}
	if err := s.availability.ReplaceWindows(ctx, providerID, windows); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "availability replaced", "provider_id", providerID, "windows", len(windows))
	return nil
}

// fitsAvailability verifies [start, start+duration) lies inside a single
// availability window on start's weekday and that start is slot-aligned.
func (s *Service) fitsAvailability(ctx context.Context, providerID string, start time.Time, durationMinutes int) error {
	windows, err := s.availability.Windows(ctx, providerID, start.Weekday())
	if err != nil {
		return err
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for _, win := range windows {
		open := win.StartOn(start)
		close := win.EndOn(start)
		if start.Before(open) || end.After(close) {
			continue
		}
		if start.Sub(open)%slotgen.DefaultStep != 0 {
			return fmt.Errorf("%w: start time is not aligned to a slot boundary", ErrInvalidRequest)
		}
		return nil
	}
	if len(windows) == 0 {
		return fmt.Errorf("%w: provider has no availability on %s", ErrProviderUnavailable, start.Weekday())
	}
	return fmt.Errorf("%w: requested time falls outside availability", ErrProviderUnavailable)
}
