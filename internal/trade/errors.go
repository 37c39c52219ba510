package trade

import "fmt"

// ValidationError reports malformed input at creation. Not retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trade: %s %s", e.Field, e.Reason)
}

// NotFoundError reports an operation referencing an unknown trade identifier.
type NotFoundError struct {
	TradeID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("trade %s not found", e.TradeID)
}

// InvalidTransitionError reports a requested status not reachable from the
// trade's current status. The trade is left unchanged. The message carries
// trade id, current status, and requested status for direct operator
// consumption, so callers can log it without re-querying.
type InvalidTransitionError struct {
	TradeID   string
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("trade %s: invalid transition %s -> %s", e.TradeID, e.Current, e.Requested)
}

// InvalidStateError reports a status outside the defined enum. This is a
// programming or data-corruption error, fatal for the operation.
type InvalidStateError struct {
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("unknown trade status %q", e.Status)
}
