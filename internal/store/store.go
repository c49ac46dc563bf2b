// Package store is the PostgreSQL adapter for orders. It is the single
// source of truth; status writes are conditional on the order revision
// so concurrent writers never silently overwrite each other.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mejakita/api/internal/enum"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, table_id, order_type, status, payment_status, revision,
	subtotal, tax, service_charge, discount, total, notes,
	confirmed_at, preparing_at, ready_at, delivered_at, completed_at, cancelled_at,
	created_at, updated_at`

// stampColumns is the whitelist of write-once timestamp columns. Only
// names from this set are ever interpolated into SQL.
var stampColumns = map[string]bool{
	"confirmed_at": true,
	"preparing_at": true,
	"ready_at":     true,
	"delivered_at": true,
	"completed_at": true,
}

// Store reads and writes orders against a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateOrderParams is the validated input for inserting an order with
// its items in one transaction.
type CreateOrderParams struct {
	TableID       pgtype.UUID
	OrderType     string
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Notes         string
	Items         []CreateOrderItemParams
}

// CreateOrderItemParams is a single line on a new order.
type CreateOrderItemParams struct {
	MenuItemID   uuid.UUID
	Quantity     int32
	UnitPrice    decimal.Decimal
	Instructions string
}

// CreateOrder inserts the order and its items atomically. New orders
// always start in pending_payment with payment pending and revision 0.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	notes := pgtype.Text{}
	if arg.Notes != "" {
		notes = pgtype.Text{String: arg.Notes, Valid: true}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, table_id, order_type, status, payment_status, revision,
			subtotal, tax, service_charge, discount, total, notes
		) VALUES (
			$1, $2, $3, $4, $5, 0,
			$6, $7, $8, $9, $10, $11
		)
		RETURNING `+orderColumns,
		uuid.New(), arg.TableID, arg.OrderType,
		enum.OrderStatusPendingPayment, enum.PaymentStatusPending,
		DecimalToNumeric(arg.Subtotal), DecimalToNumeric(arg.Tax),
		DecimalToNumeric(arg.ServiceCharge), DecimalToNumeric(arg.Discount),
		DecimalToNumeric(arg.Total), notes,
	)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range arg.Items {
		instructions := pgtype.Text{}
		if item.Instructions != "" {
			instructions = pgtype.Text{String: item.Instructions, Valid: true}
		}
		lineSubtotal := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price, subtotal, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), order.ID, item.MenuItemID, item.Quantity,
			DecimalToNumeric(item.UnitPrice), DecimalToNumeric(lineSubtotal), instructions,
		)
		if err != nil {
			return Order{}, fmt.Errorf("insert item[%d]: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// GetOrder fetches a single order by id. Returns pgx.ErrNoRows (wrapped)
// when the order does not exist.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// UpdateOrderStatusParams is a conditional status write.
type UpdateOrderStatusParams struct {
	ID               uuid.UUID
	Status           string
	ExpectedRevision int32
	StampField       string // write-once timestamp column, "" for none
}

// UpdateOrderStatus performs the single conditional write that moves an
// order to a new status. The write only lands if the revision still
// matches; the stamp column (if any) is set only when NULL. Returns
// pgx.ErrNoRows when the order is missing or the revision moved.
func (s *Store) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	set := `status = $1, revision = revision + 1, updated_at = now()`
	if arg.StampField != "" {
		if !stampColumns[arg.StampField] {
			return Order{}, fmt.Errorf("unknown stamp column %q", arg.StampField)
		}
		set += fmt.Sprintf(", %s = COALESCE(%s, now())", arg.StampField, arg.StampField)
	}
	if arg.Status == enum.OrderStatusCancelled {
		set += `, cancelled_at = COALESCE(cancelled_at, now())`
	}

	row := s.db.QueryRow(ctx, `
		UPDATE orders SET `+set+`
		WHERE id = $2 AND revision = $3
		RETURNING `+orderColumns,
		arg.Status, arg.ID, arg.ExpectedRevision,
	)
	return scanOrder(row)
}

// UpdatePaymentStatus sets the payment axis independently of the order
// status chain.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET payment_status = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+orderColumns,
		status, id,
	)
	return scanOrder(row)
}

// ListOrdersForTable returns every order bound to the table, newest
// first. The occupancy aggregator filters terminal ones itself.
func (s *Store) ListOrdersForTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1
		ORDER BY created_at DESC`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListActiveOrders returns all non-terminal orders, oldest first, for
// the kitchen dashboard.
func (s *Store) ListActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC`,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListOrderItems returns the lines of an order in insertion order.
func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, unit_price, subtotal, instructions
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &it.Instructions); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TableID, &o.OrderType, &o.Status, &o.PaymentStatus, &o.Revision,
		&o.Subtotal, &o.Tax, &o.ServiceCharge, &o.Discount, &o.Total, &o.Notes,
		&o.ConfirmedAt, &o.PreparingAt, &o.ReadyAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
