// Package occupancy derives a table's display status from its active
// orders. Nothing here is stored; the label is recomputed in full on
// every read so a stale cached label can never survive.
package occupancy

import (
	"github.com/google/uuid"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/lifecycle"
	"github.com/mejakita/api/internal/store"
)

// Priority when multiple active orders disagree:
// pending_payment > ordering > food_ready > dining > available.
var labelRank = map[string]int{
	enum.TableStatusPendingPayment: 4,
	enum.TableStatusOrdering:       3,
	enum.TableStatusFoodReady:      2,
	enum.TableStatusDining:         1,
	enum.TableStatusAvailable:      0,
}

// orderLabel maps one active order's status to its occupancy
// contribution.
func orderLabel(status string) string {
	switch status {
	case enum.OrderStatusPendingPayment, enum.OrderStatusPaymentVerification:
		return enum.TableStatusPendingPayment
	case enum.OrderStatusConfirmed, enum.OrderStatusPreparing:
		return enum.TableStatusOrdering
	case enum.OrderStatusReady:
		return enum.TableStatusFoodReady
	case enum.OrderStatusDelivered:
		return enum.TableStatusDining
	}
	return enum.TableStatusAvailable
}

// Label computes the occupancy label for a table from the full order
// set. Orders for other tables and terminal orders are ignored; an
// empty active set yields available unconditionally.
func Label(tableID uuid.UUID, orders []store.Order) string {
	label := enum.TableStatusAvailable
	for i := range orders {
		o := &orders[i]
		if !o.TableID.Valid || uuid.UUID(o.TableID.Bytes) != tableID {
			continue
		}
		if lifecycle.IsTerminal(o.Status) {
			continue
		}
		if l := orderLabel(o.Status); labelRank[l] > labelRank[label] {
			label = l
		}
	}
	return label
}
