package occupancy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/store"
)

func tableOrder(tableID uuid.UUID, status string) store.Order {
	return store.Order{
		ID:      uuid.New(),
		TableID: pgtype.UUID{Bytes: tableID, Valid: true},
		Status:  status,
	}
}

func TestLabel(t *testing.T) {
	tableID := uuid.New()
	otherTable := uuid.New()

	tests := []struct {
		name   string
		orders []store.Order
		want   string
	}{
		{
			"no orders",
			nil,
			enum.TableStatusAvailable,
		},
		{
			"only terminal orders",
			[]store.Order{
				tableOrder(tableID, enum.OrderStatusCompleted),
				tableOrder(tableID, enum.OrderStatusCancelled),
			},
			enum.TableStatusAvailable,
		},
		{
			"other tables ignored",
			[]store.Order{tableOrder(otherTable, enum.OrderStatusPreparing)},
			enum.TableStatusAvailable,
		},
		{
			"takeaway orders ignored",
			[]store.Order{{ID: uuid.New(), Status: enum.OrderStatusPreparing}},
			enum.TableStatusAvailable,
		},
		{
			"awaiting payment",
			[]store.Order{tableOrder(tableID, enum.OrderStatusPaymentVerification)},
			enum.TableStatusPendingPayment,
		},
		{
			"preparing outranks ready",
			[]store.Order{
				tableOrder(tableID, enum.OrderStatusPreparing),
				tableOrder(tableID, enum.OrderStatusReady),
			},
			enum.TableStatusOrdering,
		},
		{
			"pending payment outranks everything",
			[]store.Order{
				tableOrder(tableID, enum.OrderStatusDelivered),
				tableOrder(tableID, enum.OrderStatusReady),
				tableOrder(tableID, enum.OrderStatusPendingPayment),
			},
			enum.TableStatusPendingPayment,
		},
		{
			"delivered but not completed is dining",
			[]store.Order{
				tableOrder(tableID, enum.OrderStatusDelivered),
				tableOrder(tableID, enum.OrderStatusCompleted),
			},
			enum.TableStatusDining,
		},
		{
			"ready is food_ready",
			[]store.Order{
				tableOrder(tableID, enum.OrderStatusReady),
				tableOrder(tableID, enum.OrderStatusDelivered),
			},
			enum.TableStatusFoodReady,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tableID, tt.orders); got != tt.want {
				t.Fatalf("Label = %s, want %s", got, tt.want)
			}
		})
	}
}
