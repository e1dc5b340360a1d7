package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/profile"
	"github.com/threadline/reconciler/internal/repository"
	"github.com/threadline/reconciler/internal/rules"
)

type fixture struct {
	svc          *Service
	orderRepo    *repository.OrderRepo
	shipmentRepo *repository.ShipmentRepo
	matchRepo    *repository.MatchRepo
}

func newFixture(t *testing.T, profiles map[string]*profile.Profile) *fixture {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orderRepo := repository.NewOrderRepo(db)
	shipmentRepo := repository.NewShipmentRepo(db)
	matchRepo := repository.NewMatchRepo(db)

	evaluator, err := rules.NewEvaluator(zerolog.Nop())
	require.NoError(t, err)

	svc := NewService(orderRepo, shipmentRepo, matchRepo,
		profile.NewRegistry(profiles), evaluator, nil, zerolog.Nop())
	return &fixture{svc: svc, orderRepo: orderRepo, shipmentRepo: shipmentRepo, matchRepo: matchRepo}
}

func order(id, customer, po, style, color, delivery string, qty int) domain.Order {
	return domain.Order{
		ID: id, Customer: customer, PONumber: po,
		StyleCode: style, ColorDescription: color, DeliveryMethod: delivery,
		Quantity: qty, OrderType: domain.OrderActive,
		OrderDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}
}

func shipment(id, customer, po, style, color, delivery string, qty int) domain.Shipment {
	return domain.Shipment{
		ID: id, Customer: customer, PONumber: po,
		StyleCode: style, ColorDescription: color, DeliveryMethod: delivery,
		Quantity: qty,
		ShippedDate: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunPersistsResult(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orderRepo.BulkInsert([]domain.Order{
		order("ORD-1", "Harbor & Lane", "PO-1", "TL-1001", "ARCTIC BLUE", "AIR", 100),
	})
	require.NoError(t, err)
	_, err = f.shipmentRepo.BulkInsert([]domain.Shipment{
		shipment("SHP-1", "Harbor & Lane", "PO-1", "TL-1001", "ARCTIC BLUE", "AIR", 100),
		shipment("SHP-2", "Harbor & Lane", "PO-1", "ZZ-9999", "UNLISTED", "GROUND", 10),
	})
	require.NoError(t, err)

	res, err := f.svc.Run(context.Background(), "Harbor & Lane", "PO-1")
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Len(t, res.Links, 1)
	assert.Equal(t, domain.LayerPerfect, res.Links[0].Layer)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "SHP-2", res.Unmatched[0].ID)

	stored, err := f.matchRepo.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Links[0].OrderID, stored.Links[0].OrderID)
	assert.Len(t, stored.Unmatched, 1)
}

func TestRunResolvesAlias(t *testing.T) {
	f := newFixture(t, map[string]*profile.Profile{
		"northpeak_outfitters": {
			Customer: "Northpeak Outfitters",
			Slug:     "northpeak_outfitters",
			Aliases:  []string{"NORTHPEAK"},
		},
	})

	_, err := f.orderRepo.BulkInsert([]domain.Order{
		order("ORD-1", "Northpeak Outfitters", "PO-1", "TL-1001", "NAVY", "AIR", 50),
		order("ORD-2", "NORTHPEAK", "PO-1", "TL-2210", "JET BLACK", "SEA", 80),
	})
	require.NoError(t, err)
	_, err = f.shipmentRepo.BulkInsert([]domain.Shipment{
		shipment("SHP-1", "NORTHPEAK", "PO-1", "TL-2210", "JET BLACK", "SEA", 80),
	})
	require.NoError(t, err)

	// Run addressed by alias; orders stored under either spelling are in scope.
	res, err := f.svc.Run(context.Background(), "northpeak", "PO-1")
	require.NoError(t, err)
	assert.Equal(t, "Northpeak Outfitters", res.Customer)
	assert.Equal(t, 2, res.OrderCount)
	require.Len(t, res.Links, 1)
	assert.Equal(t, "ORD-2", res.Links[0].OrderID)
}

func TestRunExclusionRuleRemovesOrders(t *testing.T) {
	f := newFixture(t, map[string]*profile.Profile{
		"harbor_lane": {
			Customer: "Harbor & Lane",
			Slug:     "harbor_lane",
			ExclusionRules: []string{
				`order.quantity == 0`,
			},
		},
	})

	_, err := f.orderRepo.BulkInsert([]domain.Order{
		order("ORD-1", "Harbor & Lane", "PO-1", "TL-1001", "NAVY", "AIR", 0),
		order("ORD-2", "Harbor & Lane", "PO-1", "TL-1001", "NAVY", "AIR", 60),
	})
	require.NoError(t, err)
	_, err = f.shipmentRepo.BulkInsert([]domain.Shipment{
		shipment("SHP-1", "Harbor & Lane", "PO-1", "TL-1001", "NAVY", "AIR", 60),
	})
	require.NoError(t, err)

	res, err := f.svc.Run(context.Background(), "Harbor & Lane", "PO-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExcludedOrders)
	require.Len(t, res.Links, 1)
	assert.Equal(t, "ORD-2", res.Links[0].OrderID)
}

func TestRunEmptyScope(t *testing.T) {
	f := newFixture(t, nil)

	// No profile, no data: a valid empty run is still persisted.
	res, err := f.svc.Run(context.Background(), "Nobody Knitwear", "PO-404")
	require.NoError(t, err)
	assert.Empty(t, res.Links)
	assert.Empty(t, res.Unmatched)
	assert.Len(t, res.Layers, 4)

	stored, err := f.matchRepo.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Zero(t, stored.OrderCount)
	assert.Zero(t, stored.ShipmentCount)
}

func TestRunSupersedesPriorScope(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orderRepo.BulkInsert([]domain.Order{
		order("ORD-1", "Harbor & Lane", "PO-1", "TL-1001", "NAVY", "AIR", 100),
	})
	require.NoError(t, err)
	_, err = f.shipmentRepo.BulkInsert([]domain.Shipment{
		shipment("SHP-1", "Harbor & Lane", "PO-1", "TL-1001", "NAVY", "AIR", 100),
	})
	require.NoError(t, err)

	first, err := f.svc.Run(context.Background(), "Harbor & Lane", "PO-1")
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), "Harbor & Lane", "PO-1")
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)

	runs, err := f.matchRepo.ListRuns("Harbor & Lane", "PO-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.RunID, runs[0].RunID)

	// Identical inputs produce identical links either run.
	require.Len(t, second.Links, len(first.Links))
	for i := range first.Links {
		assert.Equal(t, first.Links[i].OrderID, second.Links[i].OrderID)
		assert.Equal(t, first.Links[i].Confidence, second.Links[i].Confidence)
	}
}
