package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateParams carries the already-validated primitive arguments a calling
// layer supplies when booking a trade.
type CreateParams struct {
	Symbol         string
	Side           Side
	Quantity       int64
	Price          decimal.Decimal
	Counterparty   string
	SettlementDays int
}

// New builds a freshly-identified trade in the EXECUTED state, or returns a
// ValidationError. The identifier is a UUID and is never reassigned.
func New(p CreateParams, now time.Time) (*Trade, error) {
	t := &Trade{
		ID:             uuid.New().String(),
		Symbol:         p.Symbol,
		Side:           p.Side,
		Quantity:       p.Quantity,
		Price:          p.Price,
		Counterparty:   p.Counterparty,
		Status:         StatusExecuted,
		ExecutedAt:     now.UTC(),
		SettlementDate: SettlementDateFrom(now, p.SettlementDays),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
