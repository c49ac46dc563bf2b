package cart

// Validation is the structured result of a pre-checkout check. Errors
// block checkout; warnings do not.
type Validation struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether checkout may proceed.
func (v Validation) OK() bool {
	return len(v.Errors) == 0
}

// Validate runs every checkout precondition and returns the full set
// of errors and warnings. It never mutates the cart.
func (c *Cart) Validate() Validation {
	var v Validation

	if c.Expired() {
		v.Errors = append(v.Errors, "session expired")
	}
	if len(c.Entries) == 0 {
		v.Errors = append(v.Errors, "cart is empty")
	}
	if c.TableID == "" {
		v.Errors = append(v.Errors, "table is not set")
	}
	for _, e := range c.Entries {
		if e.Quantity <= 0 {
			v.Errors = append(v.Errors, "entry "+e.Name+" has invalid quantity")
		}
		if e.Quantity > MaxItemQuantity {
			v.Errors = append(v.Errors, "entry "+e.Name+" exceeds the per-item limit")
		}
	}
	if c.TotalQuantity() > MaxTotalQuantity {
		v.Errors = append(v.Errors, "cart exceeds the total quantity limit")
	}

	if len(c.Entries) > 0 {
		summary := c.GetSummary()
		if summary.Total.LessThan(MinOrderTotal) {
			v.Warnings = append(v.Warnings, "total is below the minimum order amount")
		}
		if summary.Total.GreaterThan(HighTotalThreshold) {
			v.Warnings = append(v.Warnings, "unusually high total, please confirm")
		}
	}
	return v
}
