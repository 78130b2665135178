package scheduling

import (
	"fmt"

	"github.com/arafat-hossain/barberbook/internal/model"
)

// The appointment state machine:
//
//	pending -> confirmed -> completed
//	pending|confirmed -> cancelled
//
// completed and cancelled are terminal. Creation always lands in pending.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted: nil,
	model.StatusCancelled: nil,
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to model.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GuardTransition returns ErrInvalidTransition (wrapped with both statuses)
// when the move is not allowed.
func GuardTransition(from, to model.Status) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// SourcesOf lists the statuses from which the given target is reachable.
// The ledger uses this to make guarded status updates atomic (compare status
// in the same statement that changes it).
func SourcesOf(to model.Status) []model.Status {
	var from []model.Status
	for s, allowed := range transitions {
		for _, a := range allowed {
			if a == to {
				from = append(from, s)
			}
		}
	}
	return from
}
