package slotgen

import (
	"testing"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
)

func mondayWindow(startMin, endMin int) model.AvailabilityWindow {
	return model.AvailabilityWindow{
		ProviderID:  "prov-1",
		Weekday:     time.Monday,
		StartMinute: startMin,
		EndMinute:   endMin,
	}
}

func TestStartTimes_MondayMorning(t *testing.T) {
	// Monday 09:00-12:00 at 30-minute steps: 09:00 through 11:30, never 12:00.
	win := mondayWindow(9*60, 12*60)
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // a Monday

	starts := StartTimes(win, date, DefaultStep)
	if len(starts) != 6 {
		t.Fatalf("expected 6 starts, got %d", len(starts))
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for i, s := range starts {
		if got := s.Format("15:04"); got != want[i] {
			t.Fatalf("start %d: expected %s, got %s", i, want[i], got)
		}
	}
	last := starts[len(starts)-1]
	if last.Add(DefaultStep).After(win.EndOn(date)) {
		t.Fatalf("last slot %s runs past close", last.Format(time.RFC3339))
	}
}

func TestStartTimes_WeekdayMismatch(t *testing.T) {
	win := mondayWindow(9*60, 12*60)
	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

	if starts := StartTimes(win, tuesday, DefaultStep); starts != nil {
		t.Fatalf("expected no starts for mismatched weekday, got %d", len(starts))
	}
}

func TestStartTimes_WindowTooShort(t *testing.T) {
	// A 20-minute window cannot fit a single 30-minute slot.
	win := mondayWindow(9*60, 9*60+20)
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	if starts := StartTimes(win, date, DefaultStep); len(starts) != 0 {
		t.Fatalf("expected 0 starts, got %d", len(starts))
	}
}

func TestStartTimes_ExactSingleSlot(t *testing.T) {
	win := mondayWindow(9*60, 9*60+30)
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	starts := StartTimes(win, date, DefaultStep)
	if len(starts) != 1 {
		t.Fatalf("expected exactly 1 start, got %d", len(starts))
	}
	if got := starts[0].Format("15:04"); got != "09:00" {
		t.Fatalf("expected 09:00, got %s", got)
	}
}

func TestStartTimes_Deterministic(t *testing.T) {
	win := mondayWindow(10*60, 16*60)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	first := StartTimes(win, date, DefaultStep)
	second := StartTimes(win, date, DefaultStep)
	if len(first) != len(second) {
		t.Fatalf("expected identical results, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("start %d differs between runs", i)
		}
	}
}

func TestStartTimes_InvalidWindow(t *testing.T) {
	win := mondayWindow(12*60, 9*60) // start after end
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	if starts := StartTimes(win, date, DefaultStep); starts != nil {
		t.Fatal("expected no starts for invalid window")
	}
}
