package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPendingPayment      = "pending_payment"
	OrderStatusPaymentVerification = "payment_verification"
	OrderStatusConfirmed           = "confirmed"
	OrderStatusPreparing           = "preparing"
	OrderStatusReady               = "ready"
	OrderStatusDelivered           = "delivered"
	OrderStatusCompleted           = "completed"
	OrderStatusCancelled           = "cancelled"
)

// Payment status is an independent axis from order status.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusVerified   = "verified"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// ── Derived table occupancy labels (computed, never stored) ──

const (
	TableStatusAvailable      = "available"
	TableStatusPendingPayment = "pending_payment"
	TableStatusOrdering       = "ordering"
	TableStatusFoodReady      = "food_ready"
	TableStatusDining         = "dining"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed_amount"
)

// GUEST is minted by the QR table scan, never stored in users.
const (
	UserRoleOwner    = "OWNER"
	UserRoleEmployee = "EMPLOYEE"
	UserRoleKitchen  = "KITCHEN"
	UserRoleGuest    = "GUEST"
)
