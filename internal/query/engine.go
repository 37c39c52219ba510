// Package query is the read-only side of the ledger: reconciliation
// aggregations over the trade store and the audit trail. It never mutates.
package query

import (
	"context"
	"sort"
	"time"

	"TradeLedger/internal/observability"
	"TradeLedger/internal/trade"

	"github.com/shopspring/decimal"
)

// TradeReader is the store view the engine aggregates over. Implementations
// must tolerate concurrent writers and return consistent copies of each
// record; cross-trade snapshot consistency is not required.
type TradeReader interface {
	TradesSettlingOn(ctx context.Context, date time.Time) ([]*trade.Trade, error)
	SettledTrades(ctx context.Context) ([]*trade.Trade, error)
	FailedTrades(ctx context.Context) ([]*trade.Trade, error)
}

// HistoryReader is the audit-trail view.
type HistoryReader interface {
	HistoryFor(ctx context.Context, tradeID string) ([]trade.Event, error)
}

// Engine serves the reconciliation queries.
type Engine struct {
	trades  TradeReader
	events  HistoryReader
	metrics *observability.Metrics // nil disables instrumentation
}

func NewEngine(trades TradeReader, events HistoryReader, metrics *observability.Metrics) *Engine {
	return &Engine{
		trades:  trades,
		events:  events,
		metrics: metrics,
	}
}

// PendingSettlements returns trades settling on the given date that have not
// reached a terminal or failed state (EXECUTED or CONFIRMED), ordered by
// notional descending.
func (e *Engine) PendingSettlements(ctx context.Context, date time.Time) ([]*trade.Trade, error) {
	defer e.observe("pending_settlements")()

	trades, err := e.trades.TradesSettlingOn(ctx, date)
	if err != nil {
		return nil, err
	}

	sort.Slice(trades, func(i, j int) bool {
		ni, nj := trades[i].Notional(), trades[j].Notional()
		if !ni.Equal(nj) {
			return ni.GreaterThan(nj)
		}
		return trades[i].ID < trades[j].ID
	})
	return trades, nil
}

// NetPositionBySymbol nets SETTLED trades per symbol: BUY quantities count
// positive, SELL negative, notional signed the same way. Results are ordered
// by absolute net notional descending. With no intervening writes the result
// is identical across calls.
func (e *Engine) NetPositionBySymbol(ctx context.Context) ([]Position, error) {
	defer e.observe("net_position_by_symbol")()

	settled, err := e.trades.SettledTrades(ctx)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]*Position)
	for _, t := range settled {
		pos, ok := bySymbol[t.Symbol]
		if !ok {
			pos = &Position{Symbol: t.Symbol}
			bySymbol[t.Symbol] = pos
		}
		qty := t.Quantity
		notional := t.Notional()
		if t.Side == trade.SideSell {
			qty = -qty
			notional = notional.Neg()
		}
		pos.NetQuantity += qty
		pos.NetNotional = pos.NetNotional.Add(notional)
	}

	positions := make([]Position, 0, len(bySymbol))
	for _, pos := range bySymbol {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		ai, aj := positions[i].NetNotional.Abs(), positions[j].NetNotional.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// FailedTrades returns all FAILED trades with their captured error reasons,
// ordered by execution time descending.
func (e *Engine) FailedTrades(ctx context.Context) ([]*trade.Trade, error) {
	defer e.observe("failed_trades")()

	failed, err := e.trades.FailedTrades(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(failed, func(i, j int) bool {
		if !failed[i].ExecutedAt.Equal(failed[j].ExecutedAt) {
			return failed[i].ExecutedAt.After(failed[j].ExecutedAt)
		}
		return failed[i].ID < failed[j].ID
	})
	return failed, nil
}

// History returns the audit trail for one trade in sequence order.
func (e *Engine) History(ctx context.Context, tradeID string) ([]trade.Event, error) {
	defer e.observe("history")()
	return e.events.HistoryFor(ctx, tradeID)
}

func (e *Engine) observe(name string) func() {
	if e.metrics == nil {
		return func() {}
	}
	e.metrics.QueryRequests.WithLabelValues(name).Inc()
	start := time.Now()
	return func() {
		e.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// Position is the netted exposure for one symbol over SETTLED trades.
type Position struct {
	Symbol      string
	NetQuantity int64
	NetNotional decimal.Decimal
}
