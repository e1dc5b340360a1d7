package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/threadline/reconciler/internal/domain"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Insert(o *domain.Order) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO orders
		(id, customer, po_number, style_code, color_description,
		 delivery_method, quantity, order_type, order_date)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Customer, o.PONumber, o.StyleCode, o.ColorDescription,
		o.DeliveryMethod, o.Quantity, string(o.OrderType),
		o.OrderDate.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) BulkInsert(orders []domain.Order) (int, error) {
	inserted := 0
	sqlTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.Prepare(
		`INSERT OR IGNORE INTO orders
		(id, customer, po_number, style_code, color_description,
		 delivery_method, quantity, order_type, order_date)
		VALUES (?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range orders {
		o := &orders[i]
		res, err := stmt.Exec(
			o.ID, o.Customer, o.PONumber, o.StyleCode, o.ColorDescription,
			o.DeliveryMethod, o.Quantity, string(o.OrderType),
			o.OrderDate.Format(time.RFC3339),
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

func (r *OrderRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

func (r *OrderRepo) GetByID(id string) (*domain.Order, error) {
	row := r.db.QueryRow("SELECT * FROM orders WHERE id = ?", id)
	var o domain.Order
	if err := scanOrder(row.Scan, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForScope returns ACTIVE orders for any of the given customer name
// spellings, optionally narrowed to one PO. This is the matching run's
// order feed.
func (r *OrderRepo) GetForScope(customerNames []string, poNumber string) ([]domain.Order, error) {
	if len(customerNames) == 0 {
		return nil, nil
	}

	query := `SELECT * FROM orders WHERE order_type = 'ACTIVE'
		AND customer COLLATE NOCASE IN (` + placeholders(len(customerNames)) + `)`
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
	return collectOrders(rows)
}

type OrderFilter struct {
	Customer  string
	PONumber  string
	StyleCode string
	OrderType string
	Page      int
	Limit     int
}

func (r *OrderRepo) List(f OrderFilter) ([]domain.Order, int, error) {
	where, args := buildOrderWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT * FROM orders" + where + " ORDER BY order_date DESC, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	return orders, total, err
}

// --- helpers ---

func buildOrderWhere(f OrderFilter) (string, []any) {
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
	if f.OrderType != "" {
		clauses = append(clauses, "order_type = ?")
		args = append(args, f.OrderType)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanOrder(scan func(...any) error, o *domain.Order) error {
	var otype, odate string
	if err := scan(
		&o.ID, &o.Customer, &o.PONumber, &o.StyleCode, &o.ColorDescription,
		&o.DeliveryMethod, &o.Quantity, &otype, &odate,
	); err != nil {
		return err
	}
	o.OrderType = domain.OrderType(otype)
	o.OrderDate, _ = time.Parse(time.RFC3339, odate)
	return nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows.Scan, &o); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
