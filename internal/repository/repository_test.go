package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/reconciler/internal/domain"
)

func openTestDB(t *testing.T) (*OrderRepo, *ShipmentRepo, *MatchRepo, *ImportRepo) {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOrderRepo(db), NewShipmentRepo(db), NewMatchRepo(db), NewImportRepo(db)
}

func testOrder(id, customer, po string, qty int) domain.Order {
	return domain.Order{
		ID:               id,
		Customer:         customer,
		PONumber:         po,
		StyleCode:        "TL-1001",
		ColorDescription: "ARCTIC BLUE",
		DeliveryMethod:   "AIR",
		Quantity:         qty,
		OrderType:        domain.OrderActive,
		OrderDate:        time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}
}

func testShipment(id, customer, po string, qty int) domain.Shipment {
	return domain.Shipment{
		ID:               id,
		Customer:         customer,
		PONumber:         po,
		StyleCode:        "TL-1001",
		ColorDescription: "ARCTIC BLUE",
		DeliveryMethod:   "AIR",
		Quantity:         qty,
		ShippedDate:      time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestOrderRepoRoundTrip(t *testing.T) {
	orderRepo, _, _, _ := openTestDB(t)

	n, err := orderRepo.BulkInsert([]domain.Order{
		testOrder("ORD-1", "Northpeak Outfitters", "PO-1", 100),
		testOrder("ORD-2", "Northpeak Outfitters", "PO-1", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-inserting the same IDs is a no-op.
	n, err = orderRepo.BulkInsert([]domain.Order{
		testOrder("ORD-1", "Northpeak Outfitters", "PO-1", 100),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := orderRepo.GetByID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "Northpeak Outfitters", got.Customer)
	assert.Equal(t, 100, got.Quantity)
	assert.Equal(t, domain.OrderActive, got.OrderType)
	assert.True(t, got.OrderDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
}

func TestOrderRepoGetForScope(t *testing.T) {
	orderRepo, _, _, _ := openTestDB(t)

	cancelled := testOrder("ORD-3", "Northpeak Outfitters", "PO-1", 10)
	cancelled.OrderType = domain.OrderCancelled
	_, err := orderRepo.BulkInsert([]domain.Order{
		testOrder("ORD-1", "Northpeak Outfitters", "PO-1", 100),
		testOrder("ORD-2", "NORTHPEAK", "PO-1", 50),
		cancelled,
		testOrder("ORD-4", "Harbor & Lane", "PO-1", 30),
		testOrder("ORD-5", "Northpeak Outfitters", "PO-2", 70),
	})
	require.NoError(t, err)

	// Alias spellings resolve case-insensitively; CANCELLED is filtered.
	orders, err := orderRepo.GetForScope([]string{"Northpeak Outfitters", "northpeak"}, "PO-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-1", orders[0].ID)
	assert.Equal(t, "ORD-2", orders[1].ID)

	// No PO filter: both POs of the customer.
	orders, err = orderRepo.GetForScope([]string{"Northpeak Outfitters", "NORTHPEAK"}, "")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestShipmentRepoListPagination(t *testing.T) {
	_, shipmentRepo, _, _ := openTestDB(t)

	var batch []domain.Shipment
	for i := 0; i < 7; i++ {
		s := testShipment("SHP-"+string(rune('A'+i)), "Northpeak Outfitters", "PO-1", 10)
		batch = append(batch, s)
	}
	_, err := shipmentRepo.BulkInsert(batch)
	require.NoError(t, err)

	page1, total, err := shipmentRepo.List(ShipmentFilter{Customer: "northpeak outfitters", Limit: 3, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, page1, 3)

	page3, _, err := shipmentRepo.List(ShipmentFilter{Customer: "northpeak outfitters", Limit: 3, Page: 3})
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func sampleRun(customer, po string) *domain.RunResult {
	return &domain.RunResult{
		Customer:      customer,
		PONumber:      po,
		OrderCount:    2,
		ShipmentCount: 2,
		Links: []domain.MatchLink{
			{
				ShipmentID:    "SHP-1",
				OrderID:       "ORD-1",
				Layer:         domain.LayerPerfect,
				Confidence:    1.0,
				StyleMatch:    domain.FieldExact,
				ColorMatch:    domain.FieldExact,
				DeliveryMatch: domain.DeliveryMatched,
				QuantityCheck: domain.QuantityPass,
				ReviewStatus:  domain.ReviewAutoApproved,
			},
			{
				ShipmentID:              "SHP-2",
				OrderID:                 "ORD-2",
				Layer:                   domain.LayerQuantity,
				Confidence:              0.62,
				StyleMatch:              domain.FieldFuzzy,
				ColorMatch:              domain.FieldExact,
				DeliveryMatch:           domain.DeliverySimilar,
				QuantityCheck:           domain.QuantityFail,
				QuantityVariancePercent: -28.5,
				ReviewStatus:            domain.ReviewPending,
				ReviewReasons:           []string{"QUANTITY_FAIL", "LOW_CONFIDENCE"},
			},
		},
		Unmatched: []domain.UnmatchedShipment{
			{Shipment: testShipment("SHP-3", customer, po, 40), Reason: domain.ReasonNoCandidates},
		},
		Layers: []domain.LayerSummary{
			{Layer: domain.LayerPerfect, Examined: 3, Matched: 1},
			{Layer: domain.LayerDeliveryFlex, Examined: 2, Matched: 0},
			{Layer: domain.LayerFuzzy, Examined: 2, Matched: 0},
			{Layer: domain.LayerQuantity, Examined: 2, Matched: 1},
		},
	}
}

func TestMatchRepoReplaceRunRoundTrip(t *testing.T) {
	_, shipmentRepo, matchRepo, _ := openTestDB(t)

	// Unmatched rows join back to the shipments table on read.
	_, err := shipmentRepo.BulkInsert([]domain.Shipment{
		testShipment("SHP-3", "Northpeak Outfitters", "PO-1", 40),
	})
	require.NoError(t, err)

	run := sampleRun("Northpeak Outfitters", "PO-1")
	require.NoError(t, matchRepo.ReplaceRun(run))
	require.NotEmpty(t, run.RunID)
	require.NotEmpty(t, run.Links[0].ID)

	got, err := matchRepo.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Northpeak Outfitters", got.Customer)
	require.Len(t, got.Links, 2)
	assert.Equal(t, domain.LayerPerfect, got.Links[0].Layer)
	assert.Equal(t, []string{"QUANTITY_FAIL", "LOW_CONFIDENCE"}, got.Links[1].ReviewReasons)
	assert.InDelta(t, -28.5, got.Links[1].QuantityVariancePercent, 1e-9)
	require.Len(t, got.Unmatched, 1)
	assert.Equal(t, "SHP-3", got.Unmatched[0].ID)
	assert.Equal(t, 40, got.Unmatched[0].Quantity)
	assert.Equal(t, domain.ReasonNoCandidates, got.Unmatched[0].Reason)
	require.Len(t, got.Layers, 4)
	assert.Equal(t, 3, got.Layers[0].Examined)
}

func TestMatchRepoReplaceRunSupersedes(t *testing.T) {
	_, _, matchRepo, _ := openTestDB(t)

	first := sampleRun("Northpeak Outfitters", "PO-1")
	require.NoError(t, matchRepo.ReplaceRun(first))

	// A run for a different scope is untouched by the replace.
	other := sampleRun("Harbor & Lane", "PO-9")
	require.NoError(t, matchRepo.ReplaceRun(other))

	second := sampleRun("Northpeak Outfitters", "PO-1")
	second.Links = second.Links[:1]
	require.NoError(t, matchRepo.ReplaceRun(second))

	runs, err := matchRepo.ListRuns("Northpeak Outfitters", "PO-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].LinkCount)

	_, err = matchRepo.GetRun(first.RunID)
	assert.Error(t, err)

	otherRuns, err := matchRepo.ListRuns("Harbor & Lane", "")
	require.NoError(t, err)
	assert.Len(t, otherRuns, 1)
}

func TestMatchRepoReviewFlow(t *testing.T) {
	_, _, matchRepo, _ := openTestDB(t)

	run := sampleRun("Northpeak Outfitters", "PO-1")
	require.NoError(t, matchRepo.ReplaceRun(run))

	queue, err := matchRepo.ReviewQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	pendingID := queue[0].ID

	require.NoError(t, matchRepo.Review(pendingID, domain.ReviewApproved, "checked against packing list"))

	link, err := matchRepo.GetLink(pendingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, link.ReviewStatus)
	assert.Equal(t, "checked against packing list", link.ReviewNote)

	// Second decision on the same link is rejected.
	err = matchRepo.Review(pendingID, domain.ReviewRejected, "")
	assert.ErrorIs(t, err, ErrNotPending)

	// Auto-approved links never accept decisions.
	err = matchRepo.Review(run.Links[0].ID, domain.ReviewApproved, "")
	assert.ErrorIs(t, err, ErrNotPending)

	queue, err = matchRepo.ReviewQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestMatchRepoListLinksFilters(t *testing.T) {
	_, _, matchRepo, _ := openTestDB(t)

	run := sampleRun("Northpeak Outfitters", "PO-1")
	require.NoError(t, matchRepo.ReplaceRun(run))

	layer := 3
	links, total, err := matchRepo.ListLinks(LinkFilter{Customer: "Northpeak Outfitters", Layer: &layer})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, links, 1)
	assert.Equal(t, "SHP-2", links[0].ShipmentID)

	links, total, err = matchRepo.ListLinks(LinkFilter{ReviewStatus: "AUTO_APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "SHP-1", links[0].ShipmentID)
}

func TestMatchRepoDashboardStats(t *testing.T) {
	_, _, matchRepo, _ := openTestDB(t)

	require.NoError(t, matchRepo.ReplaceRun(sampleRun("Northpeak Outfitters", "PO-1")))
	require.NoError(t, matchRepo.ReplaceRun(sampleRun("Harbor & Lane", "PO-9")))

	stats, err := matchRepo.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 4, stats.Links)
	assert.Equal(t, 2, stats.ReviewQueueSize)
	assert.Equal(t, 2, stats.AutoApproved)
	assert.Equal(t, 2, stats.Unmatched)
	assert.Equal(t, 2, stats.LinksByLayer["perfect"])
	assert.Equal(t, 2, stats.LinksByLayer["quantity"])
}

func TestImportRepoHashIdempotency(t *testing.T) {
	_, _, _, importRepo := openTestDB(t)

	batch := &domain.ImportBatch{
		ID:          "batch-1",
		Customer:    "Northpeak Outfitters",
		Kind:        domain.ImportOrders,
		Filename:    "orders.csv",
		FileHash:    "abc123",
		RecordCount: 12,
		ImportedAt:  time.Now().UTC(),
	}
	require.NoError(t, importRepo.Insert(batch))

	exists, err := importRepo.ExistsByHash("abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = importRepo.ExistsByHash("other")
	require.NoError(t, err)
	assert.False(t, exists)

	batches, err := importRepo.List("northpeak outfitters")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, domain.ImportOrders, batches[0].Kind)
}
