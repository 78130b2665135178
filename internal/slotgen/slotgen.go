// Package slotgen expands recurring availability windows into concrete
// bookable start times. It is a pure computation: no clock, no store, no
// knowledge of existing bookings.
package slotgen

import (
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
)

// DefaultStep is the service's minimum schedulable unit.
const DefaultStep = 30 * time.Minute

// StartTimes emits candidate start times for the window anchored on date,
// advancing by step. The window close is an exclusive bound on the slot's
// end: a slot is emitted only while start+step <= close, so nothing starts
// at or runs past closing time. Returns nil when the date's weekday does not
// match the window.
func StartTimes(win model.AvailabilityWindow, date time.Time, step time.Duration) []time.Time {
	if step <= 0 {
		step = DefaultStep
	}
	if !win.Valid() || date.Weekday() != win.Weekday {
		return nil
	}

	open := win.StartOn(date)
	close := win.EndOn(date)

	var starts []time.Time
	for t := open; !t.Add(step).After(close); t = t.Add(step) {
		starts = append(starts, t)
	}
	return starts
}
