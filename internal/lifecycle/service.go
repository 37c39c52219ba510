package lifecycle

import (
	"context"
	"errors"
	"time"

	"TradeLedger/internal/observability"
	"TradeLedger/internal/trade"

	"github.com/rs/zerolog"
)

// SystemActor is recorded on audit events the service emits on its own
// behalf, such as the creation event.
const SystemActor = "SYSTEM"

// Store is keyed storage of trade records with schema-level enforcement.
// Each write persists the record mutation together with its audit event as
// one atomic unit: a reader must never observe a trade without its creation
// event, and a failed write must leave neither behind. The log assigns the
// event's sequence number and timestamp. SetStatus performs no
// transition-legality validation; that decision is made by Validate before
// the call.
type Store interface {
	Create(ctx context.Context, t *trade.Trade, draft trade.EventDraft) (*trade.Event, error)
	Get(ctx context.Context, tradeID string) (*trade.Trade, error)
	SetStatus(ctx context.Context, tradeID string, status trade.Status, phaseTime *time.Time, errorReason string, draft trade.EventDraft) (*trade.Event, error)
}

// EventLog is the read side of the append-only audit trail. Events are
// written only through Store, one per status change; no update or delete
// operation exists.
type EventLog interface {
	HistoryFor(ctx context.Context, tradeID string) ([]trade.Event, error)
}

// Publisher hands committed audit events to an external pub/sub service.
// Publishing is best-effort; failures must not fail the transition.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *trade.Event) error
}

// Service is the sole entry point for mutating trade state. It composes the
// store, the transition validator, and the event log under a per-trade
// critical section, so concurrent transitions on one trade are strictly
// serialized while different trades proceed in parallel.
type Service struct {
	store    Store
	eventLog EventLog
	pub      Publisher // nil when outbound publishing is disabled
	logger   zerolog.Logger
	metrics  *observability.Metrics // nil disables instrumentation
	locks    *keyedMutex
}

// NewService wires a lifecycle service. pub and metrics may be nil.
func NewService(store Store, eventLog EventLog, pub Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:    store,
		eventLog: eventLog,
		pub:      pub,
		logger:   logger,
		metrics:  metrics,
		locks:    newKeyedMutex(),
	}
}

// CreateTrade books a new trade in the EXECUTED state with its creation
// event (old status nil, actor SYSTEM). The store persists both atomically,
// so no reader can observe the trade before its creation event exists, and
// a failed creation leaves neither behind.
func (s *Service) CreateTrade(ctx context.Context, p trade.CreateParams) (*trade.Trade, error) {
	t, err := trade.New(p, time.Now())
	if err != nil {
		var vErr *trade.ValidationError
		if s.metrics != nil && errors.As(err, &vErr) {
			s.metrics.TradesRejected.WithLabelValues(vErr.Field).Inc()
		}
		return nil, err
	}

	s.locks.Lock(t.ID)
	defer s.locks.Unlock(t.ID)

	ev, err := s.store.Create(ctx, t, trade.EventDraft{
		NewStatus: trade.StatusExecuted,
		Actor:     SystemActor,
		Note:      "Trade created",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("trade_id", t.ID).
		Str("symbol", t.Symbol).
		Str("side", string(t.Side)).
		Int64("quantity", t.Quantity).
		Str("price", t.Price.String()).
		Str("counterparty", t.Counterparty).
		Time("settlement_date", t.SettlementDate).
		Msg("trade created")

	if s.metrics != nil {
		s.metrics.TradesCreated.Inc()
		s.metrics.EventLogSequence.Set(float64(ev.Sequence))
	}

	s.publish(ctx, ev)
	return t, nil
}

// Transition moves a trade to the requested status. Validation, the event
// append, and the store mutation run as one unit inside the trade's critical
// section, and the store persists the event and the mutation atomically, so
// no reader observes an advanced trade without its audit event and no failed
// write leaves an event for a transition that never happened. A rejected
// transition leaves the trade unchanged.
//
// CONFIRMED stamps the confirmed-at timestamp and SETTLED the settled-at
// timestamp, each written once even across the FAILED retry loop. For FAILED
// the note is also captured as the trade's error reason.
func (s *Service) Transition(ctx context.Context, tradeID string, requested trade.Status, actor, note string) (*trade.Trade, error) {
	start := time.Now()

	s.locks.Lock(tradeID)
	defer s.locks.Unlock(tradeID)

	t, err := s.store.Get(ctx, tradeID)
	if err != nil {
		s.reject(tradeID, requested, "not_found", err)
		return nil, err
	}

	if err := Validate(t.Status, requested); err != nil {
		var trErr *trade.InvalidTransitionError
		if errors.As(err, &trErr) {
			trErr.TradeID = tradeID
			s.reject(tradeID, requested, "invalid_transition", err)
		} else {
			s.reject(tradeID, requested, "invalid_state", err)
		}
		return nil, err
	}

	phaseTime, errorReason := transitionEffects(t, requested, note)

	oldStatus := t.Status
	ev, err := s.store.SetStatus(ctx, tradeID, requested, phaseTime, errorReason, trade.EventDraft{
		OldStatus: &oldStatus,
		NewStatus: requested,
		Actor:     actor,
		Note:      note,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("trade_id", tradeID).
		Str("from", string(oldStatus)).
		Str("to", string(requested)).
		Str("actor", actor).
		Msg("transition applied")

	if s.metrics != nil {
		s.metrics.TransitionsApplied.WithLabelValues(string(requested)).Inc()
		s.metrics.EventLogSequence.Set(float64(ev.Sequence))
		s.metrics.TransitionDuration.Observe(time.Since(start).Seconds())
	}

	s.publish(ctx, ev)
	return s.store.Get(ctx, tradeID)
}

// transitionEffects computes the phase timestamp and error-reason mutation
// for an already-validated transition. Phase timestamps are write-once: a
// CONFIRMED re-entered through the FAILED retry edge keeps its original
// confirmed-at. Leaving FAILED clears the reason, keeping it set only on
// FAILED trades.
func transitionEffects(t *trade.Trade, requested trade.Status, note string) (*time.Time, string) {
	var phaseTime *time.Time
	now := time.Now().UTC()

	switch requested {
	case trade.StatusConfirmed:
		if t.ConfirmedAt == nil {
			phaseTime = &now
		}
	case trade.StatusSettled:
		if t.SettledAt == nil {
			phaseTime = &now
		}
	}

	errorReason := ""
	if requested == trade.StatusFailed {
		errorReason = note
	}
	return phaseTime, errorReason
}

// History returns the trade's audit trail in sequence order.
func (s *Service) History(ctx context.Context, tradeID string) ([]trade.Event, error) {
	return s.eventLog.HistoryFor(ctx, tradeID)
}

func (s *Service) reject(tradeID string, requested trade.Status, reason string, err error) {
	s.logger.Warn().
		Str("trade_id", tradeID).
		Str("requested", string(requested)).
		Str("reason", reason).
		Err(err).
		Msg("transition rejected")
	if s.metrics != nil {
		s.metrics.TransitionsRejected.WithLabelValues(reason).Inc()
	}
}

// publish hands the event to the outbound publisher. Downstream consumers
// can always re-read the event log, so a publish failure is logged and
// counted but never fails the write.
func (s *Service) publish(ctx context.Context, ev *trade.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishEvent(ctx, ev); err != nil {
		s.logger.Warn().Int64("sequence", ev.Sequence).Err(err).Msg("outbound publish failed")
		if s.metrics != nil {
			s.metrics.PublishErrors.Inc()
		}
	}
}
