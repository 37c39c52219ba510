package lifecycle

import (
	"TradeLedger/internal/trade"
)

// transitions is the lifecycle state machine: current status -> allowed set.
// SETTLED and CANCELLED are terminal. FAILED -> CONFIRMED is the re-attempt
// edge after remediation; retries are unlimited.
var transitions = map[trade.Status][]trade.Status{
	trade.StatusExecuted:  {trade.StatusConfirmed, trade.StatusCancelled},
	trade.StatusConfirmed: {trade.StatusSettled, trade.StatusFailed},
	trade.StatusFailed:    {trade.StatusConfirmed},
	trade.StatusSettled:   {},
	trade.StatusCancelled: {},
}

// IsAllowed reports whether requested is reachable from current in one step.
// Unknown statuses are never allowed.
func IsAllowed(current, requested trade.Status) bool {
	for _, next := range transitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// Validate is the pure transition decision: nil if the edge exists,
// InvalidStateError if either status is outside the enum, and
// InvalidTransitionError otherwise. It consults no storage and has no
// side effects.
func Validate(current, requested trade.Status) error {
	if !current.Known() {
		return &trade.InvalidStateError{Status: current}
	}
	if !requested.Known() {
		return &trade.InvalidStateError{Status: requested}
	}
	if !IsAllowed(current, requested) {
		return &trade.InvalidTransitionError{Current: current, Requested: requested}
	}
	return nil
}
