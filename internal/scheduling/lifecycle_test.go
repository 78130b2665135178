package scheduling

import (
	"errors"
	"testing"

	"github.com/arafat-hossain/barberbook/internal/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.Status
		ok       bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusCancelled, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestGuardTransition_InvalidIsSentinel(t *testing.T) {
	err := GuardTransition(model.StatusCancelled, model.StatusConfirmed)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestGuardTransition_UnknownStatus(t *testing.T) {
	err := GuardTransition(model.Status("archived"), model.StatusConfirmed)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown status, got %v", err)
	}
}

func TestSourcesOf(t *testing.T) {
	from := SourcesOf(model.StatusCancelled)
	if len(from) != 2 {
		t.Fatalf("expected cancelled reachable from 2 statuses, got %v", from)
	}
	seen := map[model.Status]bool{}
	for _, s := range from {
		seen[s] = true
	}
	if !seen[model.StatusPending] || !seen[model.StatusConfirmed] {
		t.Fatalf("expected pending and confirmed, got %v", from)
	}

	if from := SourcesOf(model.StatusPending); len(from) != 0 {
		t.Fatalf("pending is initial-only, got sources %v", from)
	}
}
