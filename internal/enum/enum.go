package enum

// Order lifecycle statuses.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCanceled  = "CANCELED"
)

// IsTerminalStatus reports whether no further transition is valid from s.
func IsTerminalStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

const (
	OrderTypeDelivery = "DELIVERY"
	OrderTypeTable    = "TABLE"
	OrderTypeCounter  = "COUNTER"
)

// Stream event types.
const (
	EventConnectionEstablished = "CONNECTION_ESTABLISHED"
	EventOrderChanged          = "ORDER_CHANGED"
)
