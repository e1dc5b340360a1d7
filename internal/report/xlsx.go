// Package report renders a matching run as an XLSX workbook for the
// review/export endpoint: one sheet of links, one of unmatched
// shipments, one of per-layer counts.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/threadline/reconciler/internal/domain"
)

var matchHeaders = []string{
	"Shipment ID", "Order ID", "Layer", "Confidence",
	"Style Match", "Color Match", "Delivery Match",
	"Quantity Check", "Quantity Variance %", "Review Status", "Review Reasons",
}

var unmatchedHeaders = []string{
	"Shipment ID", "PO Number", "Style Code", "Color", "Delivery", "Quantity", "Reason",
}

// WriteRun writes the workbook for a run to w.
func WriteRun(w io.Writer, res *domain.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	const matches = "Matches"
	f.SetSheetName("Sheet1", matches)
	if err := writeRow(f, matches, 1, toAny(matchHeaders)); err != nil {
		return err
	}
	for i, l := range res.Links {
		row := []any{
			l.ShipmentID, l.OrderID, int(l.Layer),
			round4(l.Confidence),
			string(l.StyleMatch), string(l.ColorMatch), string(l.DeliveryMatch),
			string(l.QuantityCheck), round4(l.QuantityVariancePercent),
			string(l.ReviewStatus), joinReasons(l.ReviewReasons),
		}
		if err := writeRow(f, matches, i+2, row); err != nil {
			return err
		}
	}

	const unmatched = "Unmatched"
	if _, err := f.NewSheet(unmatched); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRow(f, unmatched, 1, toAny(unmatchedHeaders)); err != nil {
		return err
	}
	for i, u := range res.Unmatched {
		row := []any{
			u.ID, u.PONumber, u.StyleCode, u.ColorDescription,
			u.DeliveryMethod, u.Quantity, string(u.Reason),
		}
		if err := writeRow(f, unmatched, i+2, row); err != nil {
			return err
		}
	}

	const layers = "Layers"
	if _, err := f.NewSheet(layers); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRow(f, layers, 1, []any{"Layer", "Examined", "Matched", "Failed"}); err != nil {
		return err
	}
	for i, ls := range res.Layers {
		row := []any{ls.Layer.String(), ls.Examined, ls.Matched, ls.Failed}
		if err := writeRow(f, layers, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
