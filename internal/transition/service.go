// Package transition is the only component permitted to mutate order
// status. Every write goes through the lifecycle state machine and an
// optimistic conditional update against the store.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/lifecycle"
	"github.com/mejakita/api/internal/store"
)

// One internal retry on a lost optimistic race; the second loss
// surfaces as ErrConflict.
const maxConflictRetries = 1

// Errors returned by the transition service.
var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalState     = errors.New("order is in a terminal state")
	ErrConflict          = errors.New("order changed concurrently, please retry")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrPaymentNotPending = errors.New("order is not awaiting payment verification")
)

// OrderStore defines the store methods the service needs.
// Satisfied by *store.Store; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, arg store.UpdateOrderStatusParams) (store.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) (store.Order, error)
}

// Event is the change notification emitted after a successful write.
// It carries only the order id and new status; observers re-fetch for
// full detail.
type Event struct {
	OrderID       uuid.UUID `json:"order_id"`
	TableID       *string   `json:"table_id,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status,omitempty"`
}

// EventPublisher fans an order change event out to connected observers.
// Satisfied by *ws.Hub.
type EventPublisher interface {
	PublishOrderEvent(ev Event)
}

// Notifier delivers fire-and-forget messages to external recipients.
// Failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// Service validates and applies order status transitions.
type Service struct {
	store    OrderStore
	events   EventPublisher
	notifier Notifier
}

// New creates a transition Service. events and notifier may be nil.
func New(st OrderStore, events EventPublisher, notifier Notifier) *Service {
	return &Service{store: st, events: events, notifier: notifier}
}

// Transition moves the order to the requested status. Idempotent for
// same-status requests; retries a lost optimistic race once.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, requested string) (*store.Order, error) {
	if !lifecycle.IsValid(requested) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}

	for attempt := 0; ; attempt++ {
		order, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("get order: %w", err)
		}

		decision := lifecycle.Validate(order.Status, requested)
		switch {
		case decision.Idempotent:
			// Success with no write and no duplicate timestamp.
			return &order, nil
		case decision.Terminal:
			return nil, fmt.Errorf("%w: %s", ErrTerminalState, decision.Reason)
		case !decision.Allowed:
			return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, decision.Reason)
		}

		updated, err := s.store.UpdateOrderStatus(ctx, store.UpdateOrderStatusParams{
			ID:               orderID,
			Status:           requested,
			ExpectedRevision: order.Revision,
			StampField:       decision.StampField,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the race between read and write: re-read and
				// re-validate once, then surface the conflict.
				if attempt < maxConflictRetries {
					continue
				}
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("update order status: %w", err)
		}

		s.emit(ctx, updated)
		return &updated, nil
	}
}

// Cancel moves the order directly to cancelled from any non-terminal
// status.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (*store.Order, error) {
	return s.Transition(ctx, orderID, enum.OrderStatusCancelled)
}

// VerifyPayment marks the payment verified and advances the order from
// payment_verification to confirmed. The gateway itself is external;
// this records the employee-side confirmation.
func (s *Service) VerifyPayment(ctx context.Context, orderID uuid.UUID) (*store.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPaymentVerification {
		return nil, fmt.Errorf("%w: status is %s", ErrPaymentNotPending, order.Status)
	}

	if _, err := s.store.UpdatePaymentStatus(ctx, orderID, enum.PaymentStatusVerified); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return s.Transition(ctx, orderID, enum.OrderStatusConfirmed)
}

// emit signals the change event and the external notifier. Neither may
// block or fail a committed transition.
func (s *Service) emit(ctx context.Context, order store.Order) {
	ev := Event{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	if order.TableID.Valid {
		t := uuid.UUID(order.TableID.Bytes).String()
		ev.TableID = &t
	}

	if s.events != nil {
		s.events.PublishOrderEvent(ev)
	}
	if s.notifier != nil {
		msg := fmt.Sprintf("order %s is now %s", order.Number(), order.Status)
		if err := s.notifier.Notify(ctx, "kitchen", msg); err != nil {
			log.Printf("ERROR: notify order %s: %v", order.ID, err)
		}
	}
}
