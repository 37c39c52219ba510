package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents trade direction
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of a trade.
// EXECUTED is the initial state; SETTLED and CANCELLED are terminal.
type Status string

const (
	StatusExecuted  Status = "EXECUTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusSettled   Status = "SETTLED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Known reports whether s is one of the five defined lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusExecuted, StatusConfirmed, StatusSettled, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// Trade is a single executed transaction tracked through settlement.
// The identifier is assigned at creation and immutable. Phase timestamps
// are present iff the trade has passed through that phase; ErrorReason is
// set only on FAILED.
type Trade struct {
	ID             string
	Symbol         string
	Side           Side
	Quantity       int64
	Price          decimal.Decimal
	Counterparty   string
	Status         Status
	SettlementDate time.Time // calendar date, UTC midnight
	ExecutedAt     time.Time
	ConfirmedAt    *time.Time
	SettledAt      *time.Time
	ErrorReason    string
}

// Notional returns quantity × price. It is derived, never stored
// independently of its inputs, so it always equals the product exactly.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Clone returns a deep copy safe to hand to readers.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.ConfirmedAt != nil {
		ts := *t.ConfirmedAt
		c.ConfirmedAt = &ts
	}
	if t.SettledAt != nil {
		ts := *t.SettledAt
		c.SettledAt = &ts
	}
	return &c
}

// Validate enforces the schema-level constraints of a trade at creation.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must be non-empty"}
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if t.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if t.Price.Sign() <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if t.Counterparty == "" {
		return &ValidationError{Field: "counterparty", Reason: "must be non-empty"}
	}
	return nil
}

// Event is one audit record per status change. Events are created once per
// transition by the lifecycle service and never mutated or deleted. The first
// event for any trade has OldStatus == nil and NewStatus == EXECUTED.
type Event struct {
	Sequence  int64 // per-log monotonic, breaks timestamp ties
	TradeID   string
	OldStatus *Status // nil only for the creation event
	NewStatus Status
	Actor     string
	Note      string
	Timestamp time.Time
}

// EventDraft is an audit event as the lifecycle service hands it to storage,
// before the log assigns its sequence number and timestamp.
type EventDraft struct {
	OldStatus *Status
	NewStatus Status
	Actor     string
	Note      string
}

// SettlementDateFrom computes the settlement date for a trade created at the
// given instant: the calendar date of creation plus settlementDays, UTC.
func SettlementDateFrom(createdAt time.Time, settlementDays int) time.Time {
	d := createdAt.UTC().AddDate(0, 0, settlementDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
