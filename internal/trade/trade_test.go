package trade_test

import (
	"errors"
	"testing"
	"time"

	"TradeLedger/internal/trade"

	"github.com/shopspring/decimal"
)

func params() trade.CreateParams {
	return trade.CreateParams{
		Symbol:         "AAPL",
		Side:           trade.SideBuy,
		Quantity:       100,
		Price:          decimal.RequireFromString("185.50"),
		Counterparty:   "GOLDMAN",
		SettlementDays: 1,
	}
}

// ============================================================================
// Test: New
// ============================================================================

func TestNew_BooksExecutedTrade(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	tr, err := trade.New(params(), now)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if tr.ID == "" {
		t.Error("trade id should be assigned at creation")
	}
	if tr.Status != trade.StatusExecuted {
		t.Errorf("status: got %s, want EXECUTED", tr.Status)
	}
	if !tr.ExecutedAt.Equal(now) {
		t.Errorf("executed at: got %v, want %v", tr.ExecutedAt, now)
	}
	if tr.ConfirmedAt != nil || tr.SettledAt != nil {
		t.Error("phase timestamps must be unset before their phases")
	}

	wantDate := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if !tr.SettlementDate.Equal(wantDate) {
		t.Errorf("settlement date: got %v, want %v", tr.SettlementDate, wantDate)
	}

	wantNotional := decimal.RequireFromString("18550.00")
	if !tr.Notional().Equal(wantNotional) {
		t.Errorf("notional: got %s, want %s", tr.Notional(), wantNotional)
	}
}

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a, _ := trade.New(params(), time.Now())
	b, _ := trade.New(params(), time.Now())
	if a.ID == b.ID {
		t.Errorf("two trades share identifier %s", a.ID)
	}
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*trade.CreateParams)
		field  string
	}{
		{"empty symbol", func(p *trade.CreateParams) { p.Symbol = "" }, "symbol"},
		{"unknown side", func(p *trade.CreateParams) { p.Side = "HOLD" }, "side"},
		{"zero quantity", func(p *trade.CreateParams) { p.Quantity = 0 }, "quantity"},
		{"negative quantity", func(p *trade.CreateParams) { p.Quantity = -5 }, "quantity"},
		{"zero price", func(p *trade.CreateParams) { p.Price = decimal.Zero }, "price"},
		{"negative price", func(p *trade.CreateParams) { p.Price = decimal.RequireFromString("-1.25") }, "price"},
		{"empty counterparty", func(p *trade.CreateParams) { p.Counterparty = "" }, "counterparty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := params()
			tc.mutate(&p)

			_, err := trade.New(p, time.Now())
			var vErr *trade.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field: got %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

// ============================================================================
// Test: Status
// ============================================================================

func TestStatus_Known(t *testing.T) {
	for _, s := range []trade.Status{
		trade.StatusExecuted, trade.StatusConfirmed, trade.StatusSettled,
		trade.StatusFailed, trade.StatusCancelled,
	} {
		if !s.Known() {
			t.Errorf("%s should be a known status", s)
		}
	}
	if trade.Status("SHIPPED").Known() {
		t.Error("SHIPPED should not be a known status")
	}
}

func TestStatus_Terminal(t *testing.T) {
	if !trade.StatusSettled.Terminal() || !trade.StatusCancelled.Terminal() {
		t.Error("SETTLED and CANCELLED are terminal")
	}
	for _, s := range []trade.Status{trade.StatusExecuted, trade.StatusConfirmed, trade.StatusFailed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

// ============================================================================
// Test: Clone
// ============================================================================

func TestClone_Independent(t *testing.T) {
	tr, _ := trade.New(params(), time.Now())
	ts := time.Now().UTC()
	tr.ConfirmedAt = &ts

	c := tr.Clone()
	c.Status = trade.StatusCancelled
	*c.ConfirmedAt = c.ConfirmedAt.Add(time.Hour)

	if tr.Status != trade.StatusExecuted {
		t.Error("mutating the clone changed the original status")
	}
	if !tr.ConfirmedAt.Equal(ts) {
		t.Error("mutating the clone changed the original timestamp")
	}
}
