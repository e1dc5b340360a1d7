// Package reconcile drives a full matching run: it resolves the
// customer, loads the scope from the store, applies exclusion rules,
// runs the matching engine and persists the result.
package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/match"
	"github.com/threadline/reconciler/internal/profile"
	"github.com/threadline/reconciler/internal/repository"
	"github.com/threadline/reconciler/internal/rules"
)

// Service runs reconciliation for (customer, po_number) scopes. Oracle
// is optional; when nil runs end after the quantity layer.
type Service struct {
	orderRepo    *repository.OrderRepo
	shipmentRepo *repository.ShipmentRepo
	matchRepo    *repository.MatchRepo
	profiles     *profile.Registry
	rules        *rules.Evaluator
	oracle       match.Oracle
	log          zerolog.Logger
}

func NewService(
	orderRepo *repository.OrderRepo,
	shipmentRepo *repository.ShipmentRepo,
	matchRepo *repository.MatchRepo,
	profiles *profile.Registry,
	evaluator *rules.Evaluator,
	oracle match.Oracle,
	log zerolog.Logger,
) *Service {
	return &Service{
		orderRepo:    orderRepo,
		shipmentRepo: shipmentRepo,
		matchRepo:    matchRepo,
		profiles:     profiles,
		rules:        evaluator,
		oracle:       oracle,
		log:          log.With().Str("component", "reconcile").Logger(),
	}
}

// Run executes one matching run and replaces any prior result for the
// scope. poNumber may be empty to reconcile every PO of the customer
// as a single scope. Empty inputs are not an error: the run persists
// with zero links and every shipment (if any) unmatched.
func (s *Service) Run(ctx context.Context, customer, poNumber string) (*domain.RunResult, error) {
	p, found := s.profiles.Resolve(customer)
	if !found {
		s.log.Warn().Str("customer", customer).
			Msg("no customer profile, matching with defaults")
		p = profile.Default(customer)
	}

	orders, err := s.orderRepo.GetForScope(p.Names(), poNumber)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	shipments, err := s.shipmentRepo.GetForScope(p.Names(), poNumber)
	if err != nil {
		return nil, fmt.Errorf("load shipments: %w", err)
	}

	orders, excludedOrders := s.applyOrderRules(p, orders)
	shipments, excludedShipments := s.applyShipmentRules(p, shipments)
	if excludedOrders > 0 || excludedShipments > 0 {
		s.log.Info().Str("customer", p.Customer).Int("orders", excludedOrders).
			Int("shipments", excludedShipments).Msg("records excluded by profile rules")
	}

	orch := match.NewOrchestrator(match.Options{
		FuzzyThreshold:           p.FuzzyThreshold,
		QuantityTolerancePercent: p.QuantityTolerancePercent,
		Oracle:                   s.oracle,
	}, s.log)

	res := orch.Run(ctx, p.Customer, poNumber, orders, shipments)
	res.ExcludedOrders = excludedOrders

	if err := s.matchRepo.ReplaceRun(res); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}

	s.log.Info().Str("run_id", res.RunID).Str("customer", p.Customer).
		Str("po_number", poNumber).Int("links", len(res.Links)).
		Int("unmatched", len(res.Unmatched)).Msg("run persisted")
	return res, nil
}

func (s *Service) applyOrderRules(p *profile.Profile, orders []domain.Order) ([]domain.Order, int) {
	if len(p.ExclusionRules) == 0 || s.rules == nil {
		return orders, 0
	}
	kept := orders[:0]
	excluded := 0
	for i := range orders {
		if s.rules.ExcludeOrder(p.ExclusionRules, &orders[i]) {
			excluded++
			continue
		}
		kept = append(kept, orders[i])
	}
	return kept, excluded
}

func (s *Service) applyShipmentRules(p *profile.Profile, shipments []domain.Shipment) ([]domain.Shipment, int) {
	if len(p.ExclusionRules) == 0 || s.rules == nil {
		return shipments, 0
	}
	kept := shipments[:0]
	excluded := 0
	for i := range shipments {
		if s.rules.ExcludeShipment(p.ExclusionRules, &shipments[i]) {
			excluded++
			continue
		}
		kept = append(kept, shipments[i])
	}
	return kept, excluded
}
