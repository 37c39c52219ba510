// Package store provides the in-memory storage substrate: the trade store
// and the append-only event log backed by one lock, so a transition's two
// writes become visible to readers as a unit.
package store

import (
	"context"
	"sync"
	"time"

	"TradeLedger/internal/trade"
)

// Memory holds trades and audit events in process memory. It implements the
// lifecycle store and event log as well as the query-engine reader views.
// All reads return copies; a reader never observes a torn trade record.
type Memory struct {
	mu     sync.RWMutex
	trades map[string]*trade.Trade
	events []trade.Event
	seq    int64
}

func NewMemory() *Memory {
	return &Memory{
		trades: make(map[string]*trade.Trade),
	}
}

// Create inserts the trade together with its creation event under one lock
// acquisition, the event first, so no reader can observe the trade before
// its audit trail exists.
func (m *Memory) Create(ctx context.Context, t *trade.Trade, draft trade.EventDraft) (*trade.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := m.appendLocked(t.ID, draft)
	m.trades[t.ID] = t.Clone()
	return ev, nil
}

// Get returns a copy of the trade or NotFoundError.
func (m *Memory) Get(ctx context.Context, tradeID string) (*trade.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.trades[tradeID]
	if !ok {
		return nil, &trade.NotFoundError{TradeID: tradeID}
	}
	return t.Clone(), nil
}

// SetStatus appends the audit event and mutates the trade in place under one
// lock acquisition; an unknown trade appends nothing. Transition legality is
// not checked here; the lifecycle service validates before calling.
func (m *Memory) SetStatus(ctx context.Context, tradeID string, status trade.Status, phaseTime *time.Time, errorReason string, draft trade.EventDraft) (*trade.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[tradeID]
	if !ok {
		return nil, &trade.NotFoundError{TradeID: tradeID}
	}

	ev := m.appendLocked(tradeID, draft)
	t.Status = status
	t.ErrorReason = errorReason
	if phaseTime != nil {
		ts := *phaseTime
		switch status {
		case trade.StatusConfirmed:
			t.ConfirmedAt = &ts
		case trade.StatusSettled:
			t.SettledAt = &ts
		}
	}
	return ev, nil
}

// appendLocked adds an audit event with a server-assigned timestamp and the
// next per-log sequence number. Caller holds the write lock. There is no
// update or delete.
func (m *Memory) appendLocked(tradeID string, draft trade.EventDraft) *trade.Event {
	m.seq++
	ev := trade.Event{
		Sequence:  m.seq,
		TradeID:   tradeID,
		OldStatus: draft.OldStatus,
		NewStatus: draft.NewStatus,
		Actor:     draft.Actor,
		Note:      draft.Note,
		Timestamp: time.Now().UTC(),
	}
	m.events = append(m.events, ev)

	out := ev
	return &out
}

// HistoryFor returns the trade's events in sequence order. The slice is a
// snapshot; re-querying yields the same result unless new events were
// appended.
func (m *Memory) HistoryFor(ctx context.Context, tradeID string) ([]trade.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var history []trade.Event
	for _, ev := range m.events {
		if ev.TradeID == tradeID {
			history = append(history, ev)
		}
	}
	return history, nil
}

// TradesSettlingOn returns trades with the given settlement date still in
// flight (EXECUTED or CONFIRMED).
func (m *Memory) TradesSettlingOn(ctx context.Context, date time.Time) ([]*trade.Trade, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	return m.filter(func(t *trade.Trade) bool {
		return t.SettlementDate.Equal(day) &&
			(t.Status == trade.StatusExecuted || t.Status == trade.StatusConfirmed)
	}), nil
}

// SettledTrades returns all trades in the SETTLED state.
func (m *Memory) SettledTrades(ctx context.Context) ([]*trade.Trade, error) {
	return m.filter(func(t *trade.Trade) bool {
		return t.Status == trade.StatusSettled
	}), nil
}

// FailedTrades returns all trades in the FAILED state, with their captured
// error reasons.
func (m *Memory) FailedTrades(ctx context.Context) ([]*trade.Trade, error) {
	return m.filter(func(t *trade.Trade) bool {
		return t.Status == trade.StatusFailed
	}), nil
}

func (m *Memory) filter(keep func(*trade.Trade) bool) []*trade.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*trade.Trade
	for _, t := range m.trades {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}
