package scheduling_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
	"github.com/arafat-hossain/barberbook/internal/storage"
)

const providerID = "prov-1"

// Monday.
var monday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.September, 7, hour, minute, 0, 0, time.UTC)
}

type fixedPrices struct{ total string }

func (f fixedPrices) TotalPrice(ctx context.Context, refs []string) (string, error) {
	return f.total, nil
}

func newTestService(t *testing.T) (*scheduling.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.PutProvider(model.Provider{ID: providerID, DisplayName: "Fade Lab", AcceptingBookings: true})
	err := store.ReplaceWindows(context.Background(), providerID, []model.AvailabilityWindow{
		{ProviderID: providerID, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
	})
	if err != nil {
		t.Fatalf("seed windows: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scheduling.NewService(store, store, fixedPrices{total: "45.00"}, logger), store
}

func TestCreateAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID:      providerID,
		CustomerID:      "cust-1",
		ServiceRefs:     []string{"haircut"},
		StartTime:       at(10, 0),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", appt.Status)
	}
	if appt.TotalPrice != "45.00" {
		t.Fatalf("total price = %s, want 45.00", appt.TotalPrice)
	}
}

func TestCreateAppointmentBufferConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// 10:45 sits inside the 30-minute buffer after the 10:00-10:30 booking.
	_, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-2", StartTime: at(10, 45), DurationMinutes: 30,
	})
	if !errors.Is(err, scheduling.ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}

	// 11:00 leaves a full buffer gap and must succeed.
	if _, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-2", StartTime: at(11, 0), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("create at buffer boundary: %v", err)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Outside availability: Monday window is 09:00-17:00.
	_, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(18, 0), DurationMinutes: 30,
	})
	if !errors.Is(err, scheduling.ErrProviderUnavailable) {
		t.Fatalf("outside availability: err = %v, want ErrProviderUnavailable", err)
	}

	// Misaligned start.
	_, err = svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 10), DurationMinutes: 30,
	})
	if !errors.Is(err, scheduling.ErrInvalidRequest) {
		t.Fatalf("misaligned start: err = %v, want ErrInvalidRequest", err)
	}

	// Provider paused.
	store.PutProvider(model.Provider{ID: providerID, AcceptingBookings: false})
	_, err = svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if !errors.Is(err, scheduling.ErrProviderUnavailable) {
		t.Fatalf("paused provider: err = %v, want ErrProviderUnavailable", err)
	}
}

func TestCreateAppointmentIdempotentReplay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1",
		StartTime: at(10, 0), DurationMinutes: 30,
		IdempotencyKey: "retry-abc",
	}
	first, err := svc.CreateAppointment(ctx, req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.CreateAppointment(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned id %s, want %s", second.ID, first.ID)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, appt.ID, "customer request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || cancelled.CancelReason != "customer request" {
		t.Fatal("expected cancellation reason and timestamp to be recorded")
	}

	// The exact same slot is bookable again.
	if _, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-2", StartTime: at(10, 0), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// pending -> completed skips confirmed and must be rejected.
	if _, err := svc.Complete(ctx, appt.ID); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("complete pending: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.Confirm(ctx, appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Complete(ctx, appt.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Terminal states accept nothing further.
	if _, err := svc.Cancel(ctx, appt.ID, ""); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("cancel completed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestConfirmCancelledFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, _ := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if _, err := svc.Cancel(ctx, appt.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Confirm(ctx, appt.ID); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("confirm cancelled: err = %v, want ErrInvalidTransition", err)
	}
}

func TestReschedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Rescheduling into one's own current slot must not self-conflict.
	if _, err := svc.Reschedule(ctx, appt.ID, at(10, 0), 30); err != nil {
		t.Fatalf("reschedule to same slot: %v", err)
	}

	moved, err := svc.Reschedule(ctx, appt.ID, at(14, 0), 60)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.StartTime.Equal(at(14, 0)) || moved.DurationMinutes != 60 {
		t.Fatalf("moved to %s/%dm, want 14:00/60m", moved.StartTime, moved.DurationMinutes)
	}

	// A second booking blocks the target slot.
	if _, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-2", StartTime: at(10, 0), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if _, err := svc.Reschedule(ctx, appt.ID, at(10, 30), 30); !errors.Is(err, scheduling.ErrSlotConflict) {
		t.Fatalf("reschedule into occupied slot: err = %v, want ErrSlotConflict", err)
	}
}

func TestRescheduleTerminalFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, _ := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	})
	if _, err := svc.Cancel(ctx, appt.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Reschedule(ctx, appt.ID, at(11, 0), 30); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("reschedule cancelled: err = %v, want ErrInvalidTransition", err)
	}
}

func TestListAvailableSlots(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateAppointment(ctx, scheduling.CreateRequest{
		ProviderID: providerID, CustomerID: "cust-1", StartTime: at(10, 0), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots, err := svc.ListAvailableSlots(ctx, providerID, monday, 30)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	// 09:00-17:00 at 30-minute steps leaves 16 candidate starts.
	if len(slots) != 16 {
		t.Fatalf("len(slots) = %d, want 16", len(slots))
	}

	avail := make(map[string]bool, len(slots))
	for _, s := range slots {
		avail[s.StartTime.Format("15:04")] = s.Available
	}
	// The booking and its buffer knock out 09:30 through 10:45; the aligned
	// grid re-opens at 11:00.
	for _, tc := range []struct {
		at   string
		want bool
	}{
		{"09:00", true},
		{"09:30", false},
		{"10:00", false},
		{"10:30", false},
		{"11:00", true},
		{"16:30", true},
	} {
		if got, ok := avail[tc.at]; !ok || got != tc.want {
			t.Errorf("slot %s available = %v (present=%v), want %v", tc.at, got, ok, tc.want)
		}
	}
}

func TestListAvailableSlotsClosedDay(t *testing.T) {
	svc, _ := newTestService(t)
	tuesday := monday.AddDate(0, 0, 1)

	slots, err := svc.ListAvailableSlots(context.Background(), providerID, tuesday, 30)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0 on a closed day", len(slots))
	}
}

func TestReplaceAvailabilityRejectsOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.ReplaceAvailability(context.Background(), providerID, []model.AvailabilityWindow{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60},
		{Weekday: time.Monday, StartMinute: 11 * 60, EndMinute: 15 * 60},
	})
	if !errors.Is(err, scheduling.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAppointment(ctx, scheduling.CreateRequest{
				ProviderID: providerID, CustomerID: "cust-" + string(rune('a'+i)),
				StartTime: at(10, 0), DurationMinutes: 30,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, scheduling.ErrSlotConflict):
		default:
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}
