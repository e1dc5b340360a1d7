package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/threadline/reconciler/internal/domain"
)

type ShipmentRepo struct {
	db *sql.DB
}

func NewShipmentRepo(db *sql.DB) *ShipmentRepo {
	return &ShipmentRepo{db: db}
}

func (r *ShipmentRepo) Insert(s *domain.Shipment) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO shipments
		(id, customer, po_number, style_code, color_description,
		 delivery_method, quantity, shipped_date)
		VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.Customer, s.PONumber, s.StyleCode, s.ColorDescription,
		s.DeliveryMethod, s.Quantity, s.ShippedDate.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (r *ShipmentRepo) BulkInsert(shipments []domain.Shipment) (int, error) {
	inserted := 0
	sqlTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.Prepare(
		`INSERT OR IGNORE INTO shipments
		(id, customer, po_number, style_code, color_description,
		 delivery_method, quantity, shipped_date)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range shipments {
		s := &shipments[i]
		res, err := stmt.Exec(
			s.ID, s.Customer, s.PONumber, s.StyleCode, s.ColorDescription,
			s.DeliveryMethod, s.Quantity, s.ShippedDate.Format(time.RFC3339),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *ShipmentRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM shipments").Scan(&count)
	return count, err
}

func (r *ShipmentRepo) GetByID(id string) (*domain.Shipment, error) {
	row := r.db.QueryRow("SELECT * FROM shipments WHERE id = ?", id)
	var s domain.Shipment
	if err := scanShipment(row.Scan, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetForScope returns shipments for any of the given customer name
// spellings, optionally narrowed to one PO.
func (r *ShipmentRepo) GetForScope(customerNames []string, poNumber string) ([]domain.Shipment, error) {
	if len(customerNames) == 0 {
		return nil, nil
	}

	query := `SELECT * FROM shipments WHERE
		customer COLLATE NOCASE IN (` + placeholders(len(customerNames)) + `)`
	args := make([]any, 0, len(customerNames)+1)
	for _, n := range customerNames {
		args = append(args, n)
	}
	if poNumber != "" {
		query += " AND po_number = ?"
		args = append(args, poNumber)
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}

type ShipmentFilter struct {
	Customer  string
	PONumber  string
	StyleCode string
	Page      int
	Limit     int
}

func (r *ShipmentRepo) List(f ShipmentFilter) ([]domain.Shipment, int, error) {
	where, args := buildShipmentWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM shipments"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT * FROM shipments" + where + " ORDER BY shipped_date DESC, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	shipments, err := collectShipments(rows)
	return shipments, total, err
}

// --- helpers ---

func buildShipmentWhere(f ShipmentFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Customer != "" {
		clauses = append(clauses, "customer COLLATE NOCASE = ?")
		args = append(args, f.Customer)
	}
	if f.PONumber != "" {
		clauses = append(clauses, "po_number = ?")
		args = append(args, f.PONumber)
	}
	if f.StyleCode != "" {
		clauses = append(clauses, "style_code = ?")
		args = append(args, f.StyleCode)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanShipment(scan func(...any) error, s *domain.Shipment) error {
	var shipped string
	if err := scan(
		&s.ID, &s.Customer, &s.PONumber, &s.StyleCode, &s.ColorDescription,
		&s.DeliveryMethod, &s.Quantity, &shipped,
	); err != nil {
		return err
	}
	s.ShippedDate, _ = time.Parse(time.RFC3339, shipped)
	return nil
}

func collectShipments(rows *sql.Rows) ([]domain.Shipment, error) {
	var shipments []domain.Shipment
	for rows.Next() {
		var s domain.Shipment
		if err := scanShipment(rows.Scan, &s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}
