package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			po_number TEXT NOT NULL,
			style_code TEXT NOT NULL,
			color_description TEXT NOT NULL,
			delivery_method TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			order_type TEXT NOT NULL,
			order_date DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_po ON orders(po_number)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_type ON orders(order_type)`,

		`CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			po_number TEXT NOT NULL,
			style_code TEXT NOT NULL,
			color_description TEXT NOT NULL,
			delivery_method TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			shipped_date DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_customer ON shipments(customer)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_po ON shipments(po_number)`,

		`CREATE TABLE IF NOT EXISTS import_batches (
			id TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			kind TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			skipped_rows INTEGER NOT NULL,
			imported_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS match_runs (
			id TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			po_number TEXT NOT NULL,
			order_count INTEGER NOT NULL,
			shipment_count INTEGER NOT NULL,
			excluded_orders INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_runs_scope ON match_runs(customer, po_number)`,

		`CREATE TABLE IF NOT EXISTS match_links (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			shipment_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			layer INTEGER NOT NULL,
			confidence REAL NOT NULL,
			style_match TEXT NOT NULL,
			color_match TEXT NOT NULL,
			delivery_match TEXT NOT NULL,
			quantity_check TEXT NOT NULL,
			quantity_variance_percent REAL NOT NULL,
			review_status TEXT NOT NULL,
			review_reasons TEXT,
			review_note TEXT,
			seq INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES match_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_links_run ON match_links(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_links_shipment ON match_links(shipment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_links_review ON match_links(review_status)`,

		`CREATE TABLE IF NOT EXISTS unmatched_shipments (
			run_id TEXT NOT NULL,
			shipment_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			seq INTEGER NOT NULL,
			PRIMARY KEY (run_id, shipment_id),
			FOREIGN KEY (run_id) REFERENCES match_runs(id)
		)`,

		`CREATE TABLE IF NOT EXISTS layer_summaries (
			run_id TEXT NOT NULL,
			layer INTEGER NOT NULL,
			examined INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, layer),
			FOREIGN KEY (run_id) REFERENCES match_runs(id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
