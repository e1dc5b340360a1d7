package domain

import "time"

// ImportKind says which side of the reconciliation a file feeds.
type ImportKind string

const (
	ImportOrders    ImportKind = "orders"
	ImportShipments ImportKind = "shipments"
)

// ImportBatch records one ingested file. FileHash makes re-uploads of
// the same file a no-op.
type ImportBatch struct {
	ID          string     `json:"id"`
	Customer    string     `json:"customer"`
	Kind        ImportKind `json:"kind"`
	Filename    string     `json:"filename"`
	FileHash    string     `json:"file_hash"`
	RecordCount int        `json:"record_count"`
	SkippedRows int        `json:"skipped_rows"`
	ImportedAt  time.Time  `json:"imported_at"`
}
