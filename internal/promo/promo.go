// Package promo is the pricing collaborator for promo codes. Pure
// arithmetic over an injected code table; it holds no order state.
package promo

import (
	"strings"

	"github.com/mejakita/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Promo is a discount descriptor attached to a cart.
type Promo struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"` // percentage or fixed_amount
	Value        decimal.Decimal `json:"value"`
	MinOrder     decimal.Decimal `json:"min_order"`
	MaxDiscount  decimal.Decimal `json:"max_discount"` // zero means uncapped
}

// Result is the outcome of validating a code against an order total.
type Result struct {
	Valid          bool            `json:"valid"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Message        string          `json:"message"`
}

// Validator resolves promo codes and computes their discount.
type Validator struct {
	codes map[string]Promo
}

// NewValidator builds a Validator over the given promos. Codes are
// matched case-insensitively.
func NewValidator(promos []Promo) *Validator {
	codes := make(map[string]Promo, len(promos))
	for _, p := range promos {
		codes[strings.ToUpper(p.Code)] = p
	}
	return &Validator{codes: codes}
}

// Lookup resolves a code to its promo descriptor.
func (v *Validator) Lookup(code string) (Promo, bool) {
	p, ok := v.codes[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}

// Validate checks the code against the order total and returns the
// discount it would grant. Never mutates anything.
func (v *Validator) Validate(code string, orderTotal decimal.Decimal) Result {
	p, ok := v.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Result{Message: "promo code not found"}
	}
	if orderTotal.LessThan(p.MinOrder) {
		return Result{Message: "order total below promo minimum"}
	}
	return Result{
		Valid:          true,
		DiscountAmount: Discount(p, orderTotal),
		Message:        "promo applied",
	}
}

// Discount computes the amount a promo takes off the given total,
// applying the percentage-or-fixed rule and the max-discount cap. The
// caller caps it again at the payable total.
func Discount(p Promo, total decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	if p.DiscountType == enum.DiscountTypePercentage {
		d = total.Mul(p.Value).Div(decimal.NewFromInt(100))
	} else {
		d = p.Value
	}
	if p.MaxDiscount.IsPositive() && d.GreaterThan(p.MaxDiscount) {
		d = p.MaxDiscount
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
