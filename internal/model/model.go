package model

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiwari-pos/monitor/internal/enum"
)

// Order is the central entity tracked by the monitor. The server is the
// authority for every field except IsPrinted, which is also set locally
// after a confirmed print submission.
type Order struct {
	ID            uuid.UUID     `json:"id" validate:"required"`
	DisplayNumber int           `json:"display_number"`
	Status        string        `json:"status" validate:"required"`
	OrderType     string        `json:"order_type" validate:"required,oneof=DELIVERY TABLE COUNTER"`
	IsPrinted     bool          `json:"is_printed"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []OrderItem   `json:"items" validate:"dive"`
	Payments      []Payment     `json:"payments,omitempty"`
	DeliveryInfo  *DeliveryInfo `json:"delivery_info,omitempty"`
	TableNumber   string        `json:"table_number,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// OrderItem is a single line on the ticket. Read-only to the monitor.
type OrderItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Notes       string          `json:"notes,omitempty"`
}

// Payment is consumed only for receipt formatting.
type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// DeliveryInfo is consumed only for receipt formatting.
type DeliveryInfo struct {
	Platform string `json:"platform,omitempty"`
	Address  string `json:"address"`
	Phone    string `json:"phone,omitempty"`
}

// TableRequest is a transient service call from a table. It appears in the
// polled snapshot while unresolved and disappears once handled.
type TableRequest struct {
	ID          uuid.UUID `json:"id"`
	TableNumber string    `json:"table_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// Settings is the outlet-level configuration fetched from the server.
type Settings struct {
	AutoAcceptOrders bool           `json:"auto_accept_orders"`
	AutoPrintEnabled bool           `json:"auto_print_enabled"`
	RestaurantInfo   RestaurantInfo `json:"restaurant_info"`
}

// RestaurantInfo is the outlet metadata printed on receipt headers.
type RestaurantInfo struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	FiscalID string `json:"fiscal_id"`
	LogoURL  string `json:"logo_url,omitempty"`
}

var validate = validator.New()

// Validate checks the order against its validate tags. Used by the stream
// adapter to reject malformed event payloads before they reach the store.
func (o *Order) Validate() error {
	return validate.Struct(o)
}

// Terminal reports whether the order has reached a final status.
func (o *Order) Terminal() bool {
	return enum.IsTerminalStatus(o.Status)
}

// Total sums quantity * unit price over all items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}
