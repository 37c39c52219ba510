package persistence_test

import (
	"context"
	"errors"
	"testing"

	"TradeLedger/internal/lifecycle"
	"TradeLedger/internal/persistence"
	"TradeLedger/internal/query"
	"TradeLedger/internal/testutil"
	"TradeLedger/internal/trade"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestPostgresLedger_FullLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := persistence.NewLedger(db)
	svc := lifecycle.NewService(ledger, ledger, nil, zerolog.Nop(), nil)
	engine := query.NewEngine(ledger, ledger, nil)
	ctx := context.Background()

	tr, err := svc.CreateTrade(ctx, trade.CreateParams{
		Symbol:         "AAPL",
		Side:           trade.SideBuy,
		Quantity:       100,
		Price:          decimal.RequireFromString("185.50"),
		Counterparty:   "GOLDMAN",
		SettlementDays: 1,
	})
	if err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}

	// Round trip through the trades table preserves the schema fields.
	got, err := ledger.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Symbol != "AAPL" || got.Side != trade.SideBuy || got.Quantity != 100 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("185.50")) {
		t.Errorf("price: got %s, want 185.50", got.Price)
	}
	if !got.Notional().Equal(decimal.RequireFromString("18550.00")) {
		t.Errorf("notional: got %s", got.Notional())
	}
	if !got.SettlementDate.Equal(tr.SettlementDate) {
		t.Errorf("settlement date: got %v, want %v", got.SettlementDate, tr.SettlementDate)
	}

	if _, err := svc.Transition(ctx, tr.ID, trade.StatusConfirmed, "ops-desk", ""); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := svc.Transition(ctx, tr.ID, trade.StatusSettled, "settlement-job", ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	_, err = svc.Transition(ctx, tr.ID, trade.StatusConfirmed, "ops-desk", "")
	var trErr *trade.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("SETTLED is terminal, got %v", err)
	}

	history, err := engine.History(ctx, tr.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length: got %d, want 3", len(history))
	}
	if history[0].OldStatus != nil || history[0].NewStatus != trade.StatusExecuted {
		t.Error("first event must be (nil -> EXECUTED)")
	}
	for i := 1; i < len(history); i++ {
		if history[i].Sequence <= history[i-1].Sequence {
			t.Errorf("event %d: sequence not increasing", i)
		}
	}

	positions, err := engine.NetPositionBySymbol(ctx)
	if err != nil {
		t.Fatalf("NetPositionBySymbol failed: %v", err)
	}
	if len(positions) != 1 || positions[0].NetQuantity != 100 {
		t.Errorf("positions: %+v", positions)
	}
}

func TestPostgresLedger_UnknownTrade(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := persistence.NewLedger(db)
	ctx := context.Background()

	_, err := ledger.Get(ctx, "no-such-trade")
	var nfErr *trade.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("Get: expected NotFoundError, got %v", err)
	}

	old := trade.StatusExecuted
	_, err = ledger.SetStatus(ctx, "no-such-trade", trade.StatusConfirmed, nil, "", trade.EventDraft{
		OldStatus: &old,
		NewStatus: trade.StatusConfirmed,
		Actor:     "ops-desk",
	})
	if !errors.As(err, &nfErr) {
		t.Fatalf("SetStatus: expected NotFoundError, got %v", err)
	}

	// The rejected write rolled back with its event: the log must not record
	// a transition the trade never underwent.
	var orphans int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_events WHERE trade_id = $1`, "no-such-trade",
	).Scan(&orphans); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if orphans != 0 {
		t.Errorf("rejected SetStatus left %d orphaned events", orphans)
	}
}

func TestPostgresLedger_EveryTradeHasCreationEvent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := persistence.NewLedger(db)
	svc := lifecycle.NewService(ledger, ledger, nil, zerolog.Nop(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.CreateTrade(ctx, trade.CreateParams{
			Symbol:         "AAPL",
			Side:           trade.SideBuy,
			Quantity:       100,
			Price:          decimal.RequireFromString("185.50"),
			Counterparty:   "GOLDMAN",
			SettlementDays: 1,
		}); err != nil {
			t.Fatalf("CreateTrade %d: %v", i, err)
		}
	}

	// Trade row and creation event commit in one transaction, so no trade
	// row can exist without its audit trail.
	var orphans int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trades t
		WHERE NOT EXISTS (
			SELECT 1 FROM trade_events e
			WHERE e.trade_id = t.id AND e.old_status IS NULL
		)
	`).Scan(&orphans); err != nil {
		t.Fatalf("count orphan trades: %v", err)
	}
	if orphans != 0 {
		t.Errorf("found %d trades without a creation event", orphans)
	}
}

func TestPostgresLedger_FailedTradesKeepReason(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := persistence.NewLedger(db)
	svc := lifecycle.NewService(ledger, ledger, nil, zerolog.Nop(), nil)
	ctx := context.Background()

	tr, err := svc.CreateTrade(ctx, trade.CreateParams{
		Symbol:         "MSFT",
		Side:           trade.SideSell,
		Quantity:       10,
		Price:          decimal.RequireFromString("415.00"),
		Counterparty:   "JPMORGAN",
		SettlementDays: 2,
	})
	if err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}
	if _, err := svc.Transition(ctx, tr.ID, trade.StatusConfirmed, "ops-desk", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, tr.ID, trade.StatusFailed, "settlement-job", "Counterparty DK'd the trade"); err != nil {
		t.Fatal(err)
	}

	failed, err := ledger.FailedTrades(ctx)
	if err != nil {
		t.Fatalf("FailedTrades failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorReason != "Counterparty DK'd the trade" {
		t.Errorf("failed trades: %+v", failed)
	}
}
