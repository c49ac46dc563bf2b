// Package lifecycle defines the order status state machine: a single
// forward chain plus cancellation. It is pure — no clock, no storage —
// so any component holding write authority can evaluate it.
package lifecycle

import (
	"fmt"

	"github.com/mejakita/api/internal/enum"
)

// forwardChain maps every non-terminal status to its single legal
// successor. Statuses absent from the map are terminal.
var forwardChain = map[string]string{
	enum.OrderStatusPendingPayment:      enum.OrderStatusPaymentVerification,
	enum.OrderStatusPaymentVerification: enum.OrderStatusConfirmed,
	enum.OrderStatusConfirmed:           enum.OrderStatusPreparing,
	enum.OrderStatusPreparing:           enum.OrderStatusReady,
	enum.OrderStatusReady:               enum.OrderStatusDelivered,
	enum.OrderStatusDelivered:           enum.OrderStatusCompleted,
}

// timestampFields maps a destination status to the column stamped when
// the order first reaches it. Write-once: stamping is skipped if the
// field is already set.
var timestampFields = map[string]string{
	enum.OrderStatusConfirmed: "confirmed_at",
	enum.OrderStatusPreparing: "preparing_at",
	enum.OrderStatusReady:     "ready_at",
	enum.OrderStatusDelivered: "delivered_at",
	enum.OrderStatusCompleted: "completed_at",
}

// Decision records whether a requested transition is allowed and why
// it was refused.
type Decision struct {
	Allowed    bool
	Idempotent bool   // requested status equals current; success, no write
	Terminal   bool   // refused because current status is terminal
	Reason     string // human-readable refusal reason
	StampField string // timestamp column to set on success, "" if none
}

// IsValid reports whether s is a known order status.
func IsValid(s string) bool {
	switch s {
	case enum.OrderStatusPendingPayment, enum.OrderStatusPaymentVerification,
		enum.OrderStatusConfirmed, enum.OrderStatusPreparing,
		enum.OrderStatusReady, enum.OrderStatusDelivered,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition is legal out of s.
func IsTerminal(s string) bool {
	return s == enum.OrderStatusCompleted || s == enum.OrderStatusCancelled
}

// Next returns the single legal forward transition from current.
// ok is false when current is terminal.
func Next(current string) (string, bool) {
	next, ok := forwardChain[current]
	return next, ok
}

// CanCancel reports whether an order in the given status may be
// cancelled. True for every status except the terminal two.
func CanCancel(current string) bool {
	return !IsTerminal(current)
}

// TimestampField returns the write-once column stamped when an order
// reaches the given status, or "" if that status stamps nothing.
func TimestampField(status string) string {
	return timestampFields[status]
}

// Validate evaluates a requested transition against the current status.
// Exactly one of three outcomes: allowed (with the timestamp field to
// stamp), idempotent (same status, success without a write), or denied
// with a reason. Cancellation is allowed from any non-terminal status
// and bypasses the chain without stamping intermediate timestamps.
func Validate(current, requested string) Decision {
	if requested == current {
		return Decision{Allowed: true, Idempotent: true}
	}
	if IsTerminal(current) {
		return Decision{
			Terminal: true,
			Reason:   fmt.Sprintf("order is %s; no further transition is legal", current),
		}
	}
	if requested == enum.OrderStatusCancelled {
		return Decision{Allowed: true}
	}
	next, ok := forwardChain[current]
	if !ok || requested != next {
		return Decision{
			Reason: fmt.Sprintf("cannot transition from %s to %s", current, requested),
		}
	}
	return Decision{Allowed: true, StampField: timestampFields[requested]}
}
