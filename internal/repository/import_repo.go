package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/threadline/reconciler/internal/domain"
)

type ImportRepo struct {
	db *sql.DB
}

func NewImportRepo(db *sql.DB) *ImportRepo {
	return &ImportRepo{db: db}
}

func (r *ImportRepo) Insert(b *domain.ImportBatch) error {
	_, err := r.db.Exec(
		`INSERT INTO import_batches
		(id, customer, kind, filename, file_hash, record_count, skipped_rows, imported_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, b.Customer, string(b.Kind), b.Filename, b.FileHash,
		b.RecordCount, b.SkippedRows, b.ImportedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

// ExistsByHash reports whether a file with this hash was already
// ingested.
func (r *ImportRepo) ExistsByHash(hash string) (bool, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM import_batches WHERE file_hash = ?", hash,
	).Scan(&n)
	return n > 0, err
}

func (r *ImportRepo) List(customer string) ([]domain.ImportBatch, error) {
	query := "SELECT * FROM import_batches"
	var args []any
	if customer != "" {
		query += " WHERE customer COLLATE NOCASE = ?"
		args = append(args, customer)
	}
	query += " ORDER BY imported_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var batches []domain.ImportBatch
	for rows.Next() {
		var b domain.ImportBatch
		var kind, imported string
		if err := rows.Scan(&b.ID, &b.Customer, &kind, &b.Filename, &b.FileHash,
			&b.RecordCount, &b.SkippedRows, &imported); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		b.Kind = domain.ImportKind(kind)
		b.ImportedAt, _ = time.Parse(time.RFC3339, imported)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
