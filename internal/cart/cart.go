// Package cart implements the table-scoped shopping cart with
// activity-based expiry, quantity ceilings, and promo attachment. The
// cart is client-owned state; the order store never sees it until
// checkout.
package cart

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mejakita/api/internal/promo"
	"github.com/shopspring/decimal"
)

const (
	// MaxItemQuantity bounds a single entry's quantity.
	MaxItemQuantity = 10
	// MaxTotalQuantity bounds the sum of all entry quantities.
	MaxTotalQuantity = 50
	// SessionTimeout is the activity-based expiry window.
	SessionTimeout = 30 * time.Minute
)

// Errors returned by cart mutations.
var (
	ErrSessionExpired     = errors.New("cart session expired")
	ErrTableMismatch      = errors.New("cart is bound to a different table")
	ErrItemLimitExceeded  = errors.New("item quantity limit exceeded")
	ErrTotalLimitExceeded = errors.New("cart quantity limit exceeded")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
)

// Entry is one cart line. Entries with the same menu item and the same
// normalized customization set merge into one line.
type Entry struct {
	MenuItemID     uuid.UUID       `json:"menu_item_id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int32           `json:"quantity"`
	Customizations []string        `json:"customizations,omitempty"`
	Instructions   string          `json:"instructions,omitempty"`
}

// Key normalizes the entry identity: menu item id plus the sorted,
// comma-joined customization ids. Two differently-ordered but equal
// customization sets collide and merge.
func (e Entry) Key() string {
	if len(e.Customizations) == 0 {
		return e.MenuItemID.String()
	}
	opts := make([]string, len(e.Customizations))
	copy(opts, e.Customizations)
	sort.Strings(opts)
	return e.MenuItemID.String() + "|" + strings.Join(opts, ",")
}

// Cart is the client-held, table-scoped cart.
type Cart struct {
	TableID      string       `json:"table_id"`
	Entries      []Entry      `json:"entries"`
	Promo        *promo.Promo `json:"promo,omitempty"`
	LastActivity time.Time    `json:"last_activity"`

	// Clock is injected for tests; nil means time.Now. Expiry is
	// evaluated lazily at each access, never by a running timer.
	Clock func() time.Time `json:"-"`
}

// New creates an empty cart bound to the given table.
func New(tableID string) *Cart {
	c := &Cart{TableID: tableID}
	c.Touch()
	return c
}

func (c *Cart) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Touch refreshes last_activity. Called on every mutation and on
// explicit user interaction.
func (c *Cart) Touch() {
	c.LastActivity = c.now()
}

// Expired reports whether the time since last activity exceeds the
// session timeout.
func (c *Cart) Expired() bool {
	return c.now().Sub(c.LastActivity) > SessionTimeout
}

// TotalQuantity is the sum of all entry quantities.
func (c *Cart) TotalQuantity() int32 {
	var total int32
	for _, e := range c.Entries {
		total += e.Quantity
	}
	return total
}

// Clear empties the cart, dropping any attached promo. The table
// binding survives so the next scan can reuse it.
func (c *Cart) Clear() {
	c.Entries = nil
	c.Promo = nil
	c.Touch()
}

// AddItem merges the entry into the cart. On expiry the cart is
// cleared first and ErrSessionExpired returned; on a table mismatch
// the cart is cleared and ErrTableMismatch returned; a limit breach
// leaves the cart unchanged.
func (c *Cart) AddItem(entry Entry, tableID string) error {
	if c.Expired() {
		c.Clear()
		return ErrSessionExpired
	}
	if tableID != "" && tableID != c.TableID {
		if c.TableID != "" && len(c.Entries) > 0 {
			c.Clear()
			c.TableID = tableID
			return ErrTableMismatch
		}
		c.TableID = tableID
	}
	if entry.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if entry.Quantity > MaxItemQuantity {
		return ErrItemLimitExceeded
	}
	if c.TotalQuantity()+entry.Quantity > MaxTotalQuantity {
		return ErrTotalLimitExceeded
	}

	key := entry.Key()
	for i := range c.Entries {
		if c.Entries[i].Key() != key {
			continue
		}
		if c.Entries[i].Quantity+entry.Quantity > MaxItemQuantity {
			return ErrItemLimitExceeded
		}
		c.Entries[i].Quantity += entry.Quantity
		c.Touch()
		return nil
	}

	c.Entries = append(c.Entries, entry)
	c.Touch()
	return nil
}

// RemoveItem drops the entry with the given key. Removing an absent
// key is a no-op.
func (c *Cart) RemoveItem(key string) {
	for i := range c.Entries {
		if c.Entries[i].Key() == key {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			c.Touch()
			return
		}
	}
}

// SetTableID rebinds the cart. A different table with a non-empty cart
// forces a full clear, promo included, before the new binding. Returns
// true when a clear happened so the caller can attempt recovery of a
// stored cart for the new table.
func (c *Cart) SetTableID(newID string) bool {
	if newID == c.TableID {
		return false
	}
	cleared := false
	if len(c.Entries) > 0 || c.Promo != nil {
		c.Clear()
		cleared = true
	}
	c.TableID = newID
	c.Touch()
	return cleared
}

// ApplyPromo atomically replaces the attached promo. Legality of the
// code is the pricing collaborator's concern, not the cart's.
func (c *Cart) ApplyPromo(p promo.Promo) {
	c.Promo = &p
	c.Touch()
}

// RemovePromo clears the attached promo.
func (c *Cart) RemovePromo() {
	c.Promo = nil
	c.Touch()
}
