package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/threadline/reconciler/internal/domain"
)

// ErrNotPending is returned when a review decision targets a link that
// is not waiting for one.
var ErrNotPending = errors.New("match link is not pending review")

type MatchRepo struct {
	db *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// ReplaceRun persists a run, first deleting every prior run for the
// same (customer, po_number) scope. The delete and all inserts commit
// in one transaction, so a crash mid-write leaves the previous run
// intact rather than the scope empty. Link IDs are assigned here.
func (r *MatchRepo) ReplaceRun(res *domain.RunResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	oldRuns, err := scopeRunIDs(tx, res.Customer, res.PONumber)
	if err != nil {
		return fmt.Errorf("find prior runs: %w", err)
	}
	for _, id := range oldRuns {
		for _, table := range []string{"match_links", "unmatched_shipments", "layer_summaries"} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
				return fmt.Errorf("delete %s for run %s: %w", table, id, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM match_runs WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete run %s: %w", id, err)
		}
	}

	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(
		`INSERT INTO match_runs
		(id, customer, po_number, order_count, shipment_count, excluded_orders, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		res.RunID, res.Customer, res.PONumber, res.OrderCount, res.ShipmentCount,
		res.ExcludedOrders, res.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	linkStmt, err := tx.Prepare(
		`INSERT INTO match_links
		(id, run_id, shipment_id, order_id, layer, confidence, style_match,
		 color_match, delivery_match, quantity_check, quantity_variance_percent,
		 review_status, review_reasons, review_note, seq)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare links: %w", err)
	}
	defer linkStmt.Close()

	for i := range res.Links {
		l := &res.Links[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.RunID = res.RunID
		_, err := linkStmt.Exec(
			l.ID, l.RunID, l.ShipmentID, l.OrderID, int(l.Layer), l.Confidence,
			string(l.StyleMatch), string(l.ColorMatch), string(l.DeliveryMatch),
			string(l.QuantityCheck), l.QuantityVariancePercent,
			string(l.ReviewStatus), strings.Join(l.ReviewReasons, ","), l.ReviewNote, i,
		)
		if err != nil {
			return fmt.Errorf("insert link %d: %w", i, err)
		}
	}

	for i := range res.Unmatched {
		u := &res.Unmatched[i]
		_, err := tx.Exec(
			`INSERT INTO unmatched_shipments (run_id, shipment_id, reason, seq) VALUES (?,?,?,?)`,
			res.RunID, u.ID, string(u.Reason), i,
		)
		if err != nil {
			return fmt.Errorf("insert unmatched %d: %w", i, err)
		}
	}

	for _, ls := range res.Layers {
		failed := 0
		if ls.Failed {
			failed = 1
		}
		_, err := tx.Exec(
			`INSERT INTO layer_summaries (run_id, layer, examined, matched, failed) VALUES (?,?,?,?,?)`,
			res.RunID, int(ls.Layer), ls.Examined, ls.Matched, failed,
		)
		if err != nil {
			return fmt.Errorf("insert layer summary %d: %w", int(ls.Layer), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRun reassembles a full RunResult, joining unmatched rows back to
// their shipment records.
func (r *MatchRepo) GetRun(runID string) (*domain.RunResult, error) {
	res := &domain.RunResult{RunID: runID}
	var created string
	err := r.db.QueryRow(
		`SELECT customer, po_number, order_count, shipment_count, excluded_orders, created_at
		 FROM match_runs WHERE id = ?`, runID,
	).Scan(&res.Customer, &res.PONumber, &res.OrderCount, &res.ShipmentCount,
		&res.ExcludedOrders, &created)
	if err != nil {
		return nil, err
	}
	res.CreatedAt, _ = time.Parse(time.RFC3339, created)

	links, err := r.linksForRun(runID)
	if err != nil {
		return nil, err
	}
	res.Links = links

	rows, err := r.db.Query(
		`SELECT s.id, s.customer, s.po_number, s.style_code, s.color_description,
		        s.delivery_method, s.quantity, s.shipped_date, u.reason
		 FROM unmatched_shipments u
		 JOIN shipments s ON s.id = u.shipment_id
		 WHERE u.run_id = ? ORDER BY u.seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unmatched: %w", err)
	}
	defer rows.Close()
	res.Unmatched = []domain.UnmatchedShipment{}
	for rows.Next() {
		var u domain.UnmatchedShipment
		var shipped, reason string
		if err := rows.Scan(
			&u.ID, &u.Customer, &u.PONumber, &u.StyleCode, &u.ColorDescription,
			&u.DeliveryMethod, &u.Quantity, &shipped, &reason,
		); err != nil {
			return nil, fmt.Errorf("scan unmatched: %w", err)
		}
		u.ShippedDate, _ = time.Parse(time.RFC3339, shipped)
		u.Reason = domain.UnmatchReason(reason)
		res.Unmatched = append(res.Unmatched, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lrows, err := r.db.Query(
		`SELECT layer, examined, matched, failed FROM layer_summaries
		 WHERE run_id = ? ORDER BY layer`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query layers: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var ls domain.LayerSummary
		var layer, failed int
		if err := lrows.Scan(&layer, &ls.Examined, &ls.Matched, &failed); err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		ls.Layer = domain.MatchLayer(layer)
		ls.Failed = failed != 0
		res.Layers = append(res.Layers, ls)
	}
	return res, lrows.Err()
}

// RunHeader is the run row without its links, for listings.
type RunHeader struct {
	RunID          string    `json:"run_id"`
	Customer       string    `json:"customer"`
	PONumber       string    `json:"po_number,omitempty"`
	OrderCount     int       `json:"order_count"`
	ShipmentCount  int       `json:"shipment_count"`
	ExcludedOrders int       `json:"excluded_orders"`
	LinkCount      int       `json:"link_count"`
	UnmatchedCount int       `json:"unmatched_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *MatchRepo) ListRuns(customer, poNumber string) ([]RunHeader, error) {
	query := `SELECT r.id, r.customer, r.po_number, r.order_count, r.shipment_count,
		r.excluded_orders, r.created_at,
		(SELECT COUNT(*) FROM match_links l WHERE l.run_id = r.id),
		(SELECT COUNT(*) FROM unmatched_shipments u WHERE u.run_id = r.id)
		FROM match_runs r`
	var clauses []string
	var args []any
	if customer != "" {
		clauses = append(clauses, "r.customer COLLATE NOCASE = ?")
		args = append(args, customer)
	}
	if poNumber != "" {
		clauses = append(clauses, "r.po_number = ?")
		args = append(args, poNumber)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var runs []RunHeader
	for rows.Next() {
		var h RunHeader
		var created string
		if err := rows.Scan(&h.RunID, &h.Customer, &h.PONumber, &h.OrderCount,
			&h.ShipmentCount, &h.ExcludedOrders, &created, &h.LinkCount, &h.UnmatchedCount); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, h)
	}
	return runs, rows.Err()
}

type LinkFilter struct {
	Customer     string
	PONumber     string
	Layer        *int
	ReviewStatus string
	Page         int
	Limit        int
}

func (r *MatchRepo) ListLinks(f LinkFilter) ([]domain.MatchLink, int, error) {
	var clauses []string
	var args []any

	if f.Customer != "" {
		clauses = append(clauses, "r.customer COLLATE NOCASE = ?")
		args = append(args, f.Customer)
	}
	if f.PONumber != "" {
		clauses = append(clauses, "r.po_number = ?")
		args = append(args, f.PONumber)
	}
	if f.Layer != nil {
		clauses = append(clauses, "l.layer = ?")
		args = append(args, *f.Layer)
	}
	if f.ReviewStatus != "" {
		clauses = append(clauses, "l.review_status = ?")
		args = append(args, f.ReviewStatus)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	from := ` FROM match_links l JOIN match_runs r ON r.id = l.run_id` + where

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + linkColumns + from + " ORDER BY r.created_at DESC, l.seq LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	return links, total, err
}

// ReviewQueue returns every link waiting on a human, oldest run first.
func (r *MatchRepo) ReviewQueue() ([]domain.MatchLink, error) {
	rows, err := r.db.Query(
		"SELECT " + linkColumns +
			` FROM match_links l JOIN match_runs r ON r.id = l.run_id
			 WHERE l.review_status = 'PENDING_REVIEW'
			 ORDER BY r.created_at, l.seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func (r *MatchRepo) GetLink(id string) (*domain.MatchLink, error) {
	row := r.db.QueryRow(
		"SELECT "+linkColumns+" FROM match_links l WHERE l.id = ?", id,
	)
	var l domain.MatchLink
	if err := scanLink(row.Scan, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Review records a human decision on a pending link. Only
// PENDING_REVIEW links accept a decision.
func (r *MatchRepo) Review(linkID string, status domain.ReviewStatus, note string) error {
	res, err := r.db.Exec(
		`UPDATE match_links SET review_status = ?, review_note = ?
		 WHERE id = ? AND review_status = 'PENDING_REVIEW'`,
		string(status), note, linkID,
	)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		if _, err := r.GetLink(linkID); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// DashboardStats aggregates across all stored runs.
type DashboardStats struct {
	Runs            int            `json:"runs"`
	Links           int            `json:"links"`
	LinksByLayer    map[string]int `json:"links_by_layer"`
	ReviewQueueSize int            `json:"review_queue_size"`
	AutoApproved    int            `json:"auto_approved"`
	Unmatched       int            `json:"unmatched"`
}

func (r *MatchRepo) GetDashboardStats() (*DashboardStats, error) {
	s := &DashboardStats{LinksByLayer: make(map[string]int)}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM match_runs").Scan(&s.Runs); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow("SELECT COUNT(*) FROM match_links").Scan(&s.Links); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(
		"SELECT COUNT(*) FROM match_links WHERE review_status = 'PENDING_REVIEW'",
	).Scan(&s.ReviewQueueSize); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(
		"SELECT COUNT(*) FROM match_links WHERE review_status = 'AUTO_APPROVED'",
	).Scan(&s.AutoApproved); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow("SELECT COUNT(*) FROM unmatched_shipments").Scan(&s.Unmatched); err != nil {
		return nil, err
	}

	rows, err := r.db.Query("SELECT layer, COUNT(*) FROM match_links GROUP BY layer")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var layer, n int
		if err := rows.Scan(&layer, &n); err != nil {
			return nil, err
		}
		s.LinksByLayer[domain.MatchLayer(layer).String()] = n
	}
	return s, rows.Err()
}

// --- helpers ---

const linkColumns = `l.id, l.run_id, l.shipment_id, l.order_id, l.layer, l.confidence,
	l.style_match, l.color_match, l.delivery_match, l.quantity_check,
	l.quantity_variance_percent, l.review_status, l.review_reasons, l.review_note`

func scopeRunIDs(tx *sql.Tx, customer, poNumber string) ([]string, error) {
	rows, err := tx.Query(
		"SELECT id FROM match_runs WHERE customer = ? AND po_number = ?",
		customer, poNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MatchRepo) linksForRun(runID string) ([]domain.MatchLink, error) {
	rows, err := r.db.Query(
		"SELECT "+linkColumns+" FROM match_links l WHERE l.run_id = ? ORDER BY l.seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func scanLink(scan func(...any) error, l *domain.MatchLink) error {
	var layer int
	var style, color, delivery, qty, review string
	var reasons, note sql.NullString
	if err := scan(
		&l.ID, &l.RunID, &l.ShipmentID, &l.OrderID, &layer, &l.Confidence,
		&style, &color, &delivery, &qty, &l.QuantityVariancePercent,
		&review, &reasons, &note,
	); err != nil {
		return err
	}
	l.Layer = domain.MatchLayer(layer)
	l.StyleMatch = domain.FieldMatch(style)
	l.ColorMatch = domain.FieldMatch(color)
	l.DeliveryMatch = domain.DeliveryMatch(delivery)
	l.QuantityCheck = domain.QuantityStatus(qty)
	l.ReviewStatus = domain.ReviewStatus(review)
	if reasons.Valid && reasons.String != "" {
		l.ReviewReasons = strings.Split(reasons.String, ",")
	}
	if note.Valid {
		l.ReviewNote = note.String
	}
	return nil
}

func collectLinks(rows *sql.Rows) ([]domain.MatchLink, error) {
	links := []domain.MatchLink{}
	for rows.Next() {
		var l domain.MatchLink
		if err := scanLink(rows.Scan, &l); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
