// Package ingestion turns customer order books and shipment manifests
// into stored Order and Shipment rows. Files arrive as CSV or Excel
// exports with per-customer column names; the customer's profile maps
// those onto the canonical fields, with header guesses as a fallback.
package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/threadline/reconciler/internal/profile"
)

// Default header guesses, tried in order when the profile does not name
// a column. Matching is case-insensitive on the trimmed header.
var defaultHeaders = map[string][]string{
	"id":       {"id", "line id", "line_id", "order id", "order_id", "shipment id", "shipment_id", "carton id", "carton_id"},
	"po":       {"po number", "po_number", "po", "po#", "purchase order", "purchase_order"},
	"style":    {"style code", "style_code", "style", "style no", "style_no", "article"},
	"color":    {"color description", "color_description", "color", "colour", "colorway"},
	"delivery": {"delivery method", "delivery_method", "delivery", "ship method", "ship_method", "ship mode", "ship_mode", "transport"},
	"quantity": {"quantity", "qty", "units", "pieces", "pcs"},
	"date":     {"order date", "order_date", "shipped date", "shipped_date", "ship date", "ship_date", "date"},
	"type":     {"order type", "order_type", "status", "type"},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
}

// rowReader resolves canonical fields against one file's headers.
type rowReader struct {
	cols profile.ColumnMap
}

func (rr rowReader) get(row map[string]string, mapped, field string) string {
	if mapped != "" {
		if v, ok := lookupHeader(row, mapped); ok {
			return v
		}
	}
	for _, guess := range defaultHeaders[field] {
		if v, ok := lookupHeader(row, guess); ok {
			return v
		}
	}
	return ""
}

func lookupHeader(row map[string]string, name string) (string, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for k, v := range row {
		if strings.ToLower(strings.TrimSpace(k)) == want {
			return v, true
		}
	}
	return "", false
}

// parseQuantity rejects negative and non-numeric values. Thousands
// separators show up in Excel exports, so "1,200" is accepted.
func parseQuantity(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	// Excel numeric cells often read back as "12.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(f)
		if float64(n) != f {
			return 0, fmt.Errorf("quantity %q is not a whole number", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("quantity %q is negative", s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("quantity %q is not numeric", s)
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
