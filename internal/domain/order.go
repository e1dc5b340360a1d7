package domain

import "time"

type OrderType string

const (
	OrderActive    OrderType = "ACTIVE"
	OrderCancelled OrderType = "CANCELLED"
)

// Order is one purchase-order line as received from the order system.
// Orders are read-only inputs to a matching run.
type Order struct {
	ID               string    `json:"order_id"`
	Customer         string    `json:"customer"`
	PONumber         string    `json:"po_number"`
	StyleCode        string    `json:"style_code"`
	ColorDescription string    `json:"color_description"`
	DeliveryMethod   string    `json:"delivery_method"`
	Quantity         int       `json:"quantity"`
	OrderType        OrderType `json:"order_type"`
	OrderDate        time.Time `json:"order_date"`
}
