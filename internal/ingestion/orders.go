package ingestion

import (
	"fmt"
	"strings"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/profile"
)

// SkippedRow reports one input row the parser rejected, with its
// 1-based data row number.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseOrders converts header-keyed rows into orders for one customer.
// Rows with invalid quantities or no style are skipped and reported;
// the rest of the file still imports. Missing line IDs are synthesized
// from the batch so re-imports stay stable.
func ParseOrders(rows []map[string]string, customer, batchID string, cols profile.ColumnMap) ([]domain.Order, []SkippedRow) {
	rr := rowReader{cols: cols}
	var orders []domain.Order
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
			id = fmt.Sprintf("%s-O%04d", batchID, i+1)
		}

		otype := domain.OrderActive
		if t := strings.ToUpper(strings.TrimSpace(rr.get(row, cols.Type, "type"))); t != "" {
			if strings.Contains(t, "CANCEL") {
				otype = domain.OrderCancelled
			}
		}

		orders = append(orders, domain.Order{
			ID:               id,
			Customer:         customer,
			PONumber:         rr.get(row, cols.PONumber, "po"),
			StyleCode:        style,
			ColorDescription: rr.get(row, cols.Color, "color"),
			DeliveryMethod:   rr.get(row, cols.Delivery, "delivery"),
			Quantity:         qty,
			OrderType:        otype,
			OrderDate:        parseDate(rr.get(row, cols.Date, "date")),
		})
	}
	return orders, skipped
}
