package domain

import "time"

// Shipment is one carton/shipment line as received from the logistics
// provider. Shipments carry no order reference; recovering that link is
// the job of the matching engine.
type Shipment struct {
	ID               string    `json:"shipment_id"`
	Customer         string    `json:"customer"`
	PONumber         string    `json:"po_number"`
	StyleCode        string    `json:"style_code"`
	ColorDescription string    `json:"color_description"`
	DeliveryMethod   string    `json:"delivery_method"`
	Quantity         int       `json:"quantity"`
	ShippedDate      time.Time `json:"shipped_date"`
}
