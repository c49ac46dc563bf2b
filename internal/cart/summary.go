package cart

import (
	"github.com/mejakita/api/internal/promo"
	"github.com/shopspring/decimal"
)

// Fixed pricing rates. Tax is PB1-style; the service fee covers table
// service on dine-in orders.
var (
	TaxRate        = decimal.NewFromFloat(0.10)
	ServiceFeeRate = decimal.NewFromFloat(0.05)
)

var (
	// MinOrderTotal is the threshold under which checkout warns.
	MinOrderTotal = decimal.NewFromInt(10000)
	// HighTotalThreshold is the total above which checkout asks for
	// explicit confirmation.
	HighTotalThreshold = decimal.NewFromInt(5000000)
)

// Summary is the priced view of a cart. All fields are non-negative
// and total = max(0, subtotal + tax + service_fee - discount).
type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}

// GetSummary computes the priced view. Pure: no mutation, no activity
// refresh.
func (c *Cart) GetSummary() Summary {
	subtotal := decimal.Zero
	for _, e := range c.Entries {
		subtotal = subtotal.Add(e.UnitPrice.Mul(decimal.NewFromInt32(e.Quantity)))
	}
	tax := subtotal.Mul(TaxRate)
	serviceFee := subtotal.Mul(ServiceFeeRate)
	payable := subtotal.Add(tax).Add(serviceFee)

	discount := decimal.Zero
	if c.Promo != nil {
		discount = promo.Discount(*c.Promo, payable)
		if discount.GreaterThan(payable) {
			discount = payable
		}
	}

	total := payable.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{
		Subtotal:   subtotal,
		Tax:        tax,
		ServiceFee: serviceFee,
		Discount:   discount,
		Total:      total,
	}
}
