package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is the authoritative order row. Money fields stay as
// pgtype.Numeric; convert with NumericToDecimal at the edges.
type Order struct {
	ID            uuid.UUID
	TableID       pgtype.UUID // absent for takeaway/delivery
	OrderType     string
	Status        string
	PaymentStatus string
	Revision      int32 // optimistic concurrency guard, bumped on every status write
	Subtotal      pgtype.Numeric
	Tax           pgtype.Numeric
	ServiceCharge pgtype.Numeric
	Discount      pgtype.Numeric
	Total         pgtype.Numeric
	Notes         pgtype.Text
	ConfirmedAt   pgtype.Timestamptz
	PreparingAt   pgtype.Timestamptz
	ReadyAt       pgtype.Timestamptz
	DeliveredAt   pgtype.Timestamptz
	CompletedAt   pgtype.Timestamptz
	CancelledAt   pgtype.Timestamptz
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Number derives the human-readable order number from the id. It is
// display-only and never stored authoritatively.
func (o *Order) Number() string {
	return fmt.Sprintf("MJK-%s", strings.ToUpper(o.ID.String()[:8]))
}

// OrderItem is a line on an order.
type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int32
	UnitPrice    pgtype.Numeric
	Subtotal     pgtype.Numeric
	Instructions pgtype.Text
}
