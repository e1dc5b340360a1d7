package ingestion

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/fileio"
	"github.com/threadline/reconciler/internal/profile"
	"github.com/threadline/reconciler/internal/repository"
)

// ImportResult is returned from a successful import.
type ImportResult struct {
	BatchID          string       `json:"batch_id"`
	Customer         string       `json:"customer"`
	RecordsParsed    int          `json:"records_parsed"`
	RecordsInserted  int          `json:"records_inserted"`
	DuplicateRecords int          `json:"duplicate_records"`
	SkippedRows      []SkippedRow `json:"skipped_rows,omitempty"`
	AlreadyIngested  bool         `json:"already_ingested,omitempty"`
}

// Service imports order books and shipment manifests.
type Service struct {
	orderRepo    *repository.OrderRepo
	shipmentRepo *repository.ShipmentRepo
	importRepo   *repository.ImportRepo
	profiles     *profile.Registry
	log          zerolog.Logger
}

func NewService(
	orderRepo *repository.OrderRepo,
	shipmentRepo *repository.ShipmentRepo,
	importRepo *repository.ImportRepo,
	profiles *profile.Registry,
	log zerolog.Logger,
) *Service {
	return &Service{
		orderRepo:    orderRepo,
		shipmentRepo: shipmentRepo,
		importRepo:   importRepo,
		profiles:     profiles,
		log:          log.With().Str("component", "ingestion").Logger(),
	}
}

// ImportOrders ingests an order-book file for a customer. Re-uploading
// a byte-identical file is a no-op, detected by file hash.
func (s *Service) ImportOrders(data []byte, filename, customer string) (*ImportResult, error) {
	return s.importFile(data, filename, customer, domain.ImportOrders)
}

// ImportShipments ingests a shipment manifest for a customer.
func (s *Service) ImportShipments(data []byte, filename, customer string) (*ImportResult, error) {
	return s.importFile(data, filename, customer, domain.ImportShipments)
}

func (s *Service) importFile(data []byte, filename, customer string, kind domain.ImportKind) (*ImportResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.importRepo.ExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		s.log.Info().Str("filename", filename).Msg("file already ingested, skipping")
		return &ImportResult{Customer: customer, AlreadyIngested: true}, nil
	}

	canonical, cols := s.resolveCustomer(customer, kind)

	rows, err := fileio.ReadRecords(bytes.NewReader(data), filename, 1)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	batchID := uuid.NewString()
	var parsed, inserted int
	var skipped []SkippedRow

	switch kind {
	case domain.ImportOrders:
		orders, sk := ParseOrders(rows, canonical, batchID, cols)
		skipped = sk
		parsed = len(orders)
		inserted, err = s.orderRepo.BulkInsert(orders)
	case domain.ImportShipments:
		shipments, sk := ParseShipments(rows, canonical, batchID, cols)
		skipped = sk
		parsed = len(shipments)
		inserted, err = s.shipmentRepo.BulkInsert(shipments)
	default:
		return nil, fmt.Errorf("unsupported import kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}

	for _, sk := range skipped {
		s.log.Warn().Str("filename", filename).Int("row", sk.Row).
			Str("reason", sk.Reason).Msg("row skipped")
	}

	batch := &domain.ImportBatch{
		ID:          batchID,
		Customer:    canonical,
		Kind:        kind,
		Filename:    filename,
		FileHash:    hash,
		RecordCount: inserted,
		SkippedRows: len(skipped),
		ImportedAt:  time.Now().UTC(),
	}
	if err := s.importRepo.Insert(batch); err != nil {
		return nil, fmt.Errorf("record batch: %w", err)
	}

	s.log.Info().Str("batch_id", batchID).Str("customer", canonical).
		Str("kind", string(kind)).Int("parsed", parsed).Int("inserted", inserted).
		Int("skipped", len(skipped)).Msg("file ingested")

	return &ImportResult{
		BatchID:          batchID,
		Customer:         canonical,
		RecordsParsed:    parsed,
		RecordsInserted:  inserted,
		DuplicateRecords: parsed - inserted,
		SkippedRows:      skipped,
	}, nil
}

// resolveCustomer maps a free-text customer name to its canonical form
// and the column mapping for this file kind. Customers without a
// profile import under their given name with header guesses only.
func (s *Service) resolveCustomer(customer string, kind domain.ImportKind) (string, profile.ColumnMap) {
	p, ok := s.profiles.Resolve(customer)
	if !ok {
		s.log.Warn().Str("customer", customer).Msg("no profile, importing with default column mapping")
		return customer, profile.ColumnMap{}
	}
	if kind == domain.ImportOrders {
		return p.Customer, p.OrderColumns
	}
	return p.Customer, p.ShipmentColumns
}
