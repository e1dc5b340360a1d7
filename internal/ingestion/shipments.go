package ingestion

import (
	"fmt"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/profile"
)

// ParseShipments converts header-keyed rows into shipments for one
// customer, with the same skip-and-report behavior as ParseOrders.
func ParseShipments(rows []map[string]string, customer, batchID string, cols profile.ColumnMap) ([]domain.Shipment, []SkippedRow) {
	rr := rowReader{cols: cols}
	var shipments []domain.Shipment
	var skipped []SkippedRow

	for i, row := range rows {
		style := rr.get(row, cols.Style, "style")
		if style == "" {
			skipped = append(skipped, SkippedRow{Row: i + 1, Reason: "no style code"})
			continue
		}
		qty, err := parseQuantity(rr.get(row, cols.Quantity, "quantity"))
		if err != nil {
			skipped = append(skipped, SkippedRow{Row: i + 1, Reason: err.Error()})
			continue
		}

		id := rr.get(row, cols.ID, "id")
		if id == "" {
			id = fmt.Sprintf("%s-S%04d", batchID, i+1)
		}

		shipments = append(shipments, domain.Shipment{
			ID:               id,
			Customer:         customer,
			PONumber:         rr.get(row, cols.PONumber, "po"),
			StyleCode:        style,
			ColorDescription: rr.get(row, cols.Color, "color"),
			DeliveryMethod:   rr.get(row, cols.Delivery, "delivery"),
			Quantity:         qty,
			ShippedDate:      parseDate(rr.get(row, cols.Date, "date")),
		})
	}
	return shipments, skipped
}
