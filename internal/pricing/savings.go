package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/usemate/order-stats-api/internal/models"
)

// Savings holds the derived outcome of an executed order: what was
// received versus what was committed, in USD terms at the respective
// block heights.
type Savings struct {
	// Percentage is (recieved - amountIn) / amountIn * 100, fixed to 5
	// decimal places. The denominator is amountIn: the figure is
	// relative to what was committed, not to what was received.
	Percentage string
	// Amount is recieved - amountIn, signed. Negative means the order
	// executed below its committed value.
	Amount string
}

// ComputeSavings derives savings from a creation snapshot and an
// execution snapshot. Returns false when either required value is
// absent or unparseable; it never panics into the caller.
func ComputeSavings(created, executed *models.BlockData) (Savings, bool) {
	if created == nil || executed == nil {
		return Savings{}, false
	}

	amountIn, err := decimal.NewFromString(models.Value(created.Amounts.AmountIn))
	if err != nil {
		return Savings{}, false
	}
	recieved, err := decimal.NewFromString(models.Value(executed.Amounts.Recieved))
	if err != nil {
		return Savings{}, false
	}
	if amountIn.IsZero() {
		return Savings{}, false
	}

	diff := recieved.Sub(amountIn)

	return Savings{
		Percentage: diff.Div(amountIn).Mul(decimal.NewFromInt(100)).StringFixed(5),
		Amount:     diff.String(),
	}, true
}
