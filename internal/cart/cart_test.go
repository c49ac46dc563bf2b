package cart

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/promo"
	"github.com/shopspring/decimal"
)

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fixedClock returns a controllable clock starting at a fixed instant.
func fixedClock() (func() time.Time, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }, &now
}

func testCart(tableID string) (*Cart, *time.Time) {
	clock, now := fixedClock()
	c := &Cart{TableID: tableID, Clock: clock}
	c.Touch()
	return c, now
}

func entry(itemID uuid.UUID, qty int32, unitPrice string, customizations ...string) Entry {
	return Entry{
		MenuItemID:     itemID,
		Name:           "item",
		UnitPrice:      price(unitPrice),
		Quantity:       qty,
		Customizations: customizations,
	}
}

func TestAddItemMergesByNormalizedKey(t *testing.T) {
	c, _ := testCart("5")
	itemID := uuid.New()

	if err := c.AddItem(entry(itemID, 2, "10000", "extra-sambal", "no-onion"), "5"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	// Same options, different order: must collide and merge.
	if err := c.AddItem(entry(itemID, 3, "10000", "no-onion", "extra-sambal"), "5"); err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(c.Entries) != 1 {
		t.Fatalf("entries = %d, want 1 merged line", len(c.Entries))
	}
	if c.Entries[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", c.Entries[0].Quantity)
	}

	// Different customization set appends a new line.
	if err := c.AddItem(entry(itemID, 1, "10000", "extra-rice"), "5"); err != nil {
		t.Fatalf("third add: %v", err)
	}
	if len(c.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(c.Entries))
	}
}

func TestAddItemPerItemCeiling(t *testing.T) {
	c, _ := testCart("5")
	itemID := uuid.New()

	if err := c.AddItem(entry(itemID, 2, "10000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// 2 + 9 breaches the cap of 10; cart must be unchanged.
	err := c.AddItem(entry(itemID, 9, "10000"), "5")
	if !errors.Is(err, ErrItemLimitExceeded) {
		t.Fatalf("got %v, want ErrItemLimitExceeded", err)
	}
	if c.Entries[0].Quantity != 2 {
		t.Fatalf("quantity = %d, cart must be unchanged after rejection", c.Entries[0].Quantity)
	}
}

func TestAddItemAggregateCeiling(t *testing.T) {
	c, _ := testCart("5")
	for i := 0; i < 5; i++ {
		if err := c.AddItem(entry(uuid.New(), 10, "10000"), "5"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	err := c.AddItem(entry(uuid.New(), 1, "10000"), "5")
	if !errors.Is(err, ErrTotalLimitExceeded) {
		t.Fatalf("got %v, want ErrTotalLimitExceeded", err)
	}
	if c.TotalQuantity() != 50 {
		t.Fatalf("total quantity = %d, want 50", c.TotalQuantity())
	}
}

func TestAddItemExpiredSessionClearsCart(t *testing.T) {
	c, now := testCart("5")
	if err := c.AddItem(entry(uuid.New(), 1, "10000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}

	*now = now.Add(SessionTimeout + time.Minute)
	err := c.AddItem(entry(uuid.New(), 1, "10000"), "5")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
	if len(c.Entries) != 0 {
		t.Fatal("expired cart must be cleared")
	}
}

func TestAddItemTableMismatchClearsCart(t *testing.T) {
	c, _ := testCart("5")
	c.ApplyPromo(promo.Promo{Code: "HEMAT10"})
	if err := c.AddItem(entry(uuid.New(), 1, "10000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := c.AddItem(entry(uuid.New(), 1, "10000"), "7")
	if !errors.Is(err, ErrTableMismatch) {
		t.Fatalf("got %v, want ErrTableMismatch", err)
	}
	if len(c.Entries) != 0 || c.Promo != nil {
		t.Fatal("mismatched cart must be fully cleared, promo included")
	}
	if c.TableID != "7" {
		t.Fatalf("table = %s, want rebound to 7", c.TableID)
	}
}

func TestSetTableIDClearsNonEmptyCart(t *testing.T) {
	c, _ := testCart("5")
	if err := c.AddItem(entry(uuid.New(), 2, "10000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.ApplyPromo(promo.Promo{Code: "HEMAT10"})

	cleared := c.SetTableID("9")
	if !cleared {
		t.Fatal("switching a non-empty cart must clear it")
	}
	if len(c.Entries) != 0 || c.Promo != nil || c.TableID != "9" {
		t.Fatalf("after switch: entries=%d promo=%v table=%s", len(c.Entries), c.Promo, c.TableID)
	}

	// Same table is a no-op.
	if c.SetTableID("9") {
		t.Fatal("same-table switch must not clear")
	}
}

func TestGetSummary(t *testing.T) {
	c, _ := testCart("5")
	if err := c.AddItem(entry(uuid.New(), 2, "50000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// subtotal 100000, tax 10000, service 5000

	s := c.GetSummary()
	if !s.Subtotal.Equal(price("100000")) {
		t.Fatalf("subtotal = %s", s.Subtotal)
	}
	if !s.Tax.Equal(price("10000")) {
		t.Fatalf("tax = %s", s.Tax)
	}
	if !s.ServiceFee.Equal(price("5000")) {
		t.Fatalf("service fee = %s", s.ServiceFee)
	}
	if !s.Total.Equal(price("115000")) {
		t.Fatalf("total = %s", s.Total)
	}

	c.ApplyPromo(promo.Promo{
		Code:         "HEMAT10",
		DiscountType: enum.DiscountTypePercentage,
		Value:        price("10"),
		MaxDiscount:  price("8000"),
	})
	s = c.GetSummary()
	if !s.Discount.Equal(price("8000")) {
		t.Fatalf("discount = %s, want capped 8000", s.Discount)
	}
	if !s.Total.Equal(price("107000")) {
		t.Fatalf("total = %s, want 107000", s.Total)
	}
}

func TestGetSummaryTotalNeverNegative(t *testing.T) {
	c, _ := testCart("5")
	if err := c.AddItem(entry(uuid.New(), 1, "1000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.ApplyPromo(promo.Promo{
		Code:         "BIG",
		DiscountType: enum.DiscountTypeFixed,
		Value:        price("999999"),
	})

	s := c.GetSummary()
	if s.Total.IsNegative() {
		t.Fatalf("total = %s, must never be negative", s.Total)
	}
	if !s.Total.IsZero() {
		t.Fatalf("total = %s, want 0 when discount swallows everything", s.Total)
	}
	// Discount is capped at the payable amount.
	payable := s.Subtotal.Add(s.Tax).Add(s.ServiceFee)
	if !s.Discount.Equal(payable) {
		t.Fatalf("discount = %s, want capped at %s", s.Discount, payable)
	}
}

func TestValidate(t *testing.T) {
	empty, _ := testCart("")
	v := empty.Validate()
	if v.OK() {
		t.Fatal("empty cart with no table must not validate")
	}
	if len(v.Errors) < 2 {
		t.Fatalf("errors = %v, want empty-cart and missing-table", v.Errors)
	}

	c, now := testCart("5")
	if err := c.AddItem(entry(uuid.New(), 2, "50000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if v := c.Validate(); !v.OK() {
		t.Fatalf("valid cart reported errors: %v", v.Errors)
	}

	// Low total warns but does not block.
	low, _ := testCart("5")
	if err := low.AddItem(entry(uuid.New(), 1, "5000"), "5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	v = low.Validate()
	if !v.OK() {
		t.Fatalf("low total must be a warning, got errors: %v", v.Errors)
	}
	if len(v.Warnings) == 0 {
		t.Fatal("low total must warn")
	}

	// Expired carts report invalid regardless of contents.
	*now = now.Add(SessionTimeout + time.Minute)
	v = c.Validate()
	if v.OK() {
		t.Fatal("expired cart must not validate")
	}
}
