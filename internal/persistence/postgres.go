// Package persistence is the Postgres storage substrate: the trades table
// keyed by trade id and the append-only trade_events table keyed by a
// BIGSERIAL sequence, with indexes on status, settlement date, and
// (trade_id, sequence) so the reconciliation queries avoid full scans.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeLedger/internal/trade"
)

// Ledger implements the lifecycle store, the event log, and the query-engine
// reader views over Postgres via database/sql (lib/pq driver).
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

const tradeColumns = `id, symbol, side, quantity, price, counterparty, status,
	settlement_date, executed_at, confirmed_at, settled_at, error_reason`

// Create inserts the trade row and its creation event in one transaction:
// they commit together or not at all, so no reader can observe a trade row
// without its audit trail and a failed creation leaves no orphan row.
func (l *Ledger) Create(ctx context.Context, t *trade.Trade, draft trade.EventDraft) (*trade.Event, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}

	ev, err := appendEventTx(ctx, tx, t.ID, draft)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades
			(id, symbol, side, quantity, price, counterparty, status,
			 settlement_date, executed_at, confirmed_at, settled_at, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NULL, '')
	`, t.ID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Counterparty,
		string(t.Status), t.SettlementDate, t.ExecutedAt)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}
	return ev, nil
}

// Get returns the trade or NotFoundError.
func (l *Ledger) Get(ctx context.Context, tradeID string) (*trade.Trade, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, tradeID)

	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, &trade.NotFoundError{TradeID: tradeID}
	}
	if err != nil {
		return nil, fmt.Errorf("select trade: %w", err)
	}
	return t, nil
}

// SetStatus appends the audit event and mutates the trade row in one
// transaction. An unknown trade rolls the event back with the update, so the
// log never records a transition the trade did not undergo. Transition
// legality is not checked here; the lifecycle service validates before
// calling.
func (l *Ledger) SetStatus(ctx context.Context, tradeID string, status trade.Status, phaseTime *time.Time, errorReason string, draft trade.EventDraft) (*trade.Event, error) {
	var confirmed, settled *time.Time
	if phaseTime != nil {
		switch status {
		case trade.StatusConfirmed:
			confirmed = phaseTime
		case trade.StatusSettled:
			settled = phaseTime
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}

	ev, err := appendEventTx(ctx, tx, tradeID, draft)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE trades SET
			status = $2,
			confirmed_at = COALESCE($3, confirmed_at),
			settled_at = COALESCE($4, settled_at),
			error_reason = $5
		WHERE id = $1
	`, tradeID, string(status), confirmed, settled, errorReason)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("update trade status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if affected == 0 {
		tx.Rollback()
		return nil, &trade.NotFoundError{TradeID: tradeID}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return ev, nil
}

// appendEventTx inserts an audit event inside the caller's transaction; the
// sequence is assigned by the BIGSERIAL column and the timestamp server-side.
// Rows are never updated or deleted.
func appendEventTx(ctx context.Context, tx *sql.Tx, tradeID string, draft trade.EventDraft) (*trade.Event, error) {
	var old *string
	if draft.OldStatus != nil {
		s := string(*draft.OldStatus)
		old = &s
	}

	ev := trade.Event{
		TradeID:   tradeID,
		OldStatus: draft.OldStatus,
		NewStatus: draft.NewStatus,
		Actor:     draft.Actor,
		Note:      draft.Note,
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO trade_events (trade_id, old_status, new_status, actor, note, timestamp)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING sequence, timestamp
	`, tradeID, old, string(draft.NewStatus), draft.Actor, draft.Note).Scan(&ev.Sequence, &ev.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return &ev, nil
}

// HistoryFor returns the trade's events in sequence order.
func (l *Ledger) HistoryFor(ctx context.Context, tradeID string) ([]trade.Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT sequence, trade_id, old_status, new_status, actor, note, timestamp
		FROM trade_events
		WHERE trade_id = $1
		ORDER BY sequence ASC
	`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var history []trade.Event
	for rows.Next() {
		var ev trade.Event
		var old sql.NullString
		if err := rows.Scan(&ev.Sequence, &ev.TradeID, &old, &ev.NewStatus,
			&ev.Actor, &ev.Note, &ev.Timestamp); err != nil {
			return nil, err
		}
		if old.Valid {
			s := trade.Status(old.String)
			ev.OldStatus = &s
		}
		history = append(history, ev)
	}
	return history, rows.Err()
}

// TradesSettlingOn returns in-flight trades (EXECUTED or CONFIRMED) with the
// given settlement date. Served by the (settlement_date, status) index.
func (l *Ledger) TradesSettlingOn(ctx context.Context, date time.Time) ([]*trade.Trade, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	return l.selectTrades(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE settlement_date = $1 AND status IN ('EXECUTED', 'CONFIRMED')
	`, day)
}

// SettledTrades returns all trades in the SETTLED state.
func (l *Ledger) SettledTrades(ctx context.Context) ([]*trade.Trade, error) {
	return l.selectTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'SETTLED'`)
}

// FailedTrades returns all trades in the FAILED state.
func (l *Ledger) FailedTrades(ctx context.Context) ([]*trade.Trade, error) {
	return l.selectTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'FAILED'`)
}

func (l *Ledger) selectTrades(ctx context.Context, query string, args ...interface{}) ([]*trade.Trade, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select trades: %w", err)
	}
	defer rows.Close()

	var trades []*trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*trade.Trade, error) {
	var t trade.Trade
	var side, status string
	var confirmed, settled sql.NullTime
	if err := row.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.Price,
		&t.Counterparty, &status, &t.SettlementDate, &t.ExecutedAt,
		&confirmed, &settled, &t.ErrorReason); err != nil {
		return nil, err
	}
	t.Side = trade.Side(side)
	t.Status = trade.Status(status)
	if confirmed.Valid {
		ts := confirmed.Time
		t.ConfirmedAt = &ts
	}
	if settled.Valid {
		ts := settled.Time
		t.SettledAt = &ts
	}
	return &t, nil
}
