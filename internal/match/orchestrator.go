package match

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
)

// DefaultFuzzyThreshold applies when a run is configured without one.
const DefaultFuzzyThreshold = 0.8

// runPhase names the orchestrator's position in the cascade. Phases
// advance strictly forward; a phase with zero input shipments still
// runs as a pass-through so every layer reports a summary.
type runPhase string

const (
	phasePending runPhase = "PENDING"
	phasePerfect runPhase = "LAYER0"
	phaseFlex    runPhase = "LAYER1"
	phaseFuzzy   runPhase = "LAYER2"
	phaseResolve runPhase = "LAYER3"
	phaseOracle  runPhase = "LAYER4"
	phaseDone    runPhase = "DONE"
)

// Options configure an Orchestrator. Zero values fall back to engine
// defaults (fuzzy threshold 0.8, quantity tolerance 5%). Oracle is
// optional; when nil the run ends after the quantity layer.
type Options struct {
	FuzzyThreshold           float64
	QuantityTolerancePercent float64
	Oracle                   Oracle
}

// Orchestrator executes the matching cascade for one scope at a time.
// It holds no per-run state, so a single instance can serve concurrent
// runs for different scopes.
type Orchestrator struct {
	opts   Options
	scorer QuantityScorer
	log    zerolog.Logger
}

func NewOrchestrator(opts Options, log zerolog.Logger) *Orchestrator {
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	return &Orchestrator{
		opts:   opts,
		scorer: NewQuantityScorer(opts.QuantityTolerancePercent),
		log:    log,
	}
}

// Run matches shipments against orders for one (customer, po) scope.
// The computation is deterministic: identical inputs produce an
// identical RunResult. Records with negative quantities are excluded
// up front and reported; an empty input on either side yields a valid
// empty result. ctx is only consulted by the optional oracle layer.
func (o *Orchestrator) Run(ctx context.Context, customer, poNumber string, orders []domain.Order, shipments []domain.Shipment) *domain.RunResult {
	start := time.Now()
	log := o.log.With().Str("customer", customer).Str("po_number", poNumber).Logger()

	res := &domain.RunResult{
		Customer:      customer,
		PONumber:      poNumber,
		OrderCount:    len(orders),
		ShipmentCount: len(shipments),
		Links:         []domain.MatchLink{},
		Unmatched:     []domain.UnmatchedShipment{},
	}

	orderRows := make([]*orderRow, 0, len(orders))
	for i := range orders {
		if orders[i].Quantity < 0 {
			res.SkippedOrders = append(res.SkippedOrders, orders[i].ID)
			log.Warn().Str("order_id", orders[i].ID).Int("quantity", orders[i].Quantity).
				Msg("order has invalid quantity, excluded from matching")
			continue
		}
		orderRows = append(orderRows, newOrderRow(&orders[i]))
	}

	rows := make([]*shipmentRow, 0, len(shipments))
	invalid := make(map[string]bool)
	for i := range shipments {
		if shipments[i].Quantity < 0 {
			invalid[shipments[i].ID] = true
			log.Warn().Str("shipment_id", shipments[i].ID).Int("quantity", shipments[i].Quantity).
				Msg("shipment has invalid quantity, excluded from matching")
			continue
		}
		rows = append(rows, newShipmentRow(&shipments[i]))
	}

	phase := phasePending
	advance := func(next runPhase) {
		log.Debug().Str("from", string(phase)).Str("to", string(next)).Msg("phase transition")
		phase = next
	}

	ledger := NewLedger()
	candidateSeen := make(map[string]bool)
	linksByShipment := make(map[string][]*domain.MatchLink)
	var links []*domain.MatchLink

	accept := func(link *domain.MatchLink, shipQty int) {
		links = append(links, link)
		linksByShipment[link.ShipmentID] = append(linksByShipment[link.ShipmentID], link)
		ledger.Record(link.OrderID, shipQty)
	}

	cascade := []struct {
		phase runPhase
		strat strategy
	}{
		{phasePerfect, newPerfectMatcher(orderRows, o.scorer)},
		{phaseFlex, newDeliveryFlexMatcher(orderRows, o.scorer)},
		{phaseFuzzy, newFuzzyMatcher(orderRows, o.scorer, o.opts.FuzzyThreshold)},
	}

	pending := rows
	for _, stage := range cascade {
		advance(stage.phase)
		summary := domain.LayerSummary{Layer: stage.strat.layer(), Examined: len(pending)}
		next, accepted := o.runLayer(stage.strat, pending, candidateSeen, &summary)
		for _, a := range accepted {
			accept(a.link, a.row.shipment.Quantity)
		}
		pending = next
		res.Layers = append(res.Layers, summary)
		log.Debug().Stringer("layer", summary.Layer).Int("examined", summary.Examined).
			Int("matched", summary.Matched).Bool("failed", summary.Failed).Msg("layer complete")
	}

	advance(phaseResolve)
	resolveSummary := domain.LayerSummary{Layer: domain.LayerQuantity}
	pending = o.runResolver(orderRows, rows, pending, linksByShipment, ledger, candidateSeen, &resolveSummary, accept)
	res.Layers = append(res.Layers, resolveSummary)
	log.Debug().Stringer("layer", resolveSummary.Layer).Int("examined", resolveSummary.Examined).
		Int("matched", resolveSummary.Matched).Msg("layer complete")

	if o.opts.Oracle != nil {
		advance(phaseOracle)
		summary := domain.LayerSummary{Layer: domain.LayerOracle, Examined: len(pending)}
		oracleLinks := oraclePass(ctx, o.opts.Oracle, pending, orderRows, o.scorer, log)
		matched := make(map[string]bool)
		for _, l := range oracleLinks {
			accept(l, quantityOf(pending, l.ShipmentID))
			matched[l.ShipmentID] = true
			summary.Matched++
		}
		next := make([]*shipmentRow, 0, len(pending))
		for _, sh := range pending {
			if !matched[sh.shipment.ID] {
				next = append(next, sh)
			}
		}
		pending = next
		res.Layers = append(res.Layers, summary)
	}

	advance(phaseDone)

	for _, l := range links {
		ClassifyReview(l)
		res.Links = append(res.Links, *l)
	}

	stillPending := make(map[string]bool, len(pending))
	for _, sh := range pending {
		stillPending[sh.shipment.ID] = true
	}
	for i := range shipments {
		sh := &shipments[i]
		switch {
		case invalid[sh.ID]:
			res.Unmatched = append(res.Unmatched, domain.UnmatchedShipment{
				Shipment: *sh, Reason: domain.ReasonInvalidQuantity,
			})
		case stillPending[sh.ID]:
			reason := domain.ReasonNoCandidates
			if candidateSeen[sh.ID] {
				reason = domain.ReasonBelowThreshold
			}
			res.Unmatched = append(res.Unmatched, domain.UnmatchedShipment{
				Shipment: *sh, Reason: reason,
			})
		}
	}

	log.Info().Int("orders", res.OrderCount).Int("shipments", res.ShipmentCount).
		Int("links", len(res.Links)).Int("unmatched", len(res.Unmatched)).
		Dur("took", time.Since(start)).Msg("matching run complete")
	return res
}

type acceptedLink struct {
	row  *shipmentRow
	link *domain.MatchLink
}

// runLayer drives one strategy over the pending shipments. A panic
// inside the strategy marks the layer failed and passes its entire
// input through unmatched: a broken layer degrades the run, it never
// aborts it. Retrying is pointless since the computation is
// deterministic.
func (o *Orchestrator) runLayer(strat strategy, pending []*shipmentRow, candidateSeen map[string]bool, summary *domain.LayerSummary) (next []*shipmentRow, accepted []acceptedLink) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Stringer("layer", strat.layer()).
				Msg("layer failed, input passes through unmatched")
			summary.Failed = true
			summary.Matched = 0
			next = pending
			accepted = nil
		}
	}()

	next = make([]*shipmentRow, 0, len(pending))
	for _, sh := range pending {
		link, candidates := strat.attempt(sh)
		if candidates > 0 {
			candidateSeen[sh.shipment.ID] = true
		}
		if link == nil {
			next = append(next, sh)
			continue
		}
		accepted = append(accepted, acceptedLink{row: sh, link: link})
		summary.Matched++
	}
	return next, accepted
}

// resolveTarget is one shipment the quantity layer will work on: either
// never matched, or matched with a failed quantity check. outstanding
// is the portion of the shipment's quantity not yet attributed to a
// linked order.
type resolveTarget struct {
	row         *shipmentRow
	outstanding int
}

// runResolver executes the quantity-resolution layer. Targets are
// processed in descending outstanding-gap order so the largest
// discrepancies resolve first while orders still have quantity left;
// ties break on ascending shipment id to keep runs reproducible. A
// shipment may gain several links here; each acceptance updates the
// consumption ledger before the next candidate is scored.
func (o *Orchestrator) runResolver(orderRows []*orderRow, all, pending []*shipmentRow, linksByShipment map[string][]*domain.MatchLink, ledger *Ledger, candidateSeen map[string]bool, summary *domain.LayerSummary, accept func(*domain.MatchLink, int)) (stillPending []*shipmentRow) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Stringer("layer", domain.LayerQuantity).
				Msg("layer failed, input passes through unmatched")
			summary.Failed = true
			summary.Matched = 0
			stillPending = pending
		}
	}()

	resolver := newQuantityResolver(orderRows, o.scorer, o.opts.FuzzyThreshold)

	qtyByOrder := make(map[string]int, len(orderRows))
	for _, row := range orderRows {
		qtyByOrder[row.order.ID] = row.order.Quantity
	}

	targets := make([]resolveTarget, 0, len(pending))
	for _, sh := range pending {
		targets = append(targets, resolveTarget{row: sh, outstanding: sh.shipment.Quantity})
	}
	for _, sh := range all {
		existing := linksByShipment[sh.shipment.ID]
		if len(existing) == 0 || !hasFailedQuantity(existing) {
			continue
		}
		outstanding := sh.shipment.Quantity
		for _, l := range existing {
			outstanding -= qtyByOrder[l.OrderID]
		}
		if outstanding <= 0 {
			continue
		}
		targets = append(targets, resolveTarget{row: sh, outstanding: outstanding})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].outstanding != targets[j].outstanding {
			return targets[i].outstanding > targets[j].outstanding
		}
		return targets[i].row.shipment.ID < targets[j].row.shipment.ID
	})
	summary.Examined = len(targets)

	matched := make(map[string]bool)
	for _, t := range targets {
		sh := t.row
		linked := make(map[string]bool)
		for _, l := range linksByShipment[sh.shipment.ID] {
			linked[l.OrderID] = true
		}

		outstanding := t.outstanding
		for outstanding > 0 {
			link, candidates := resolver.attempt(sh, outstanding, linked, ledger)
			if candidates > 0 {
				candidateSeen[sh.shipment.ID] = true
			}
			if link == nil {
				break
			}
			covered := ledger.Remaining(orderByID(orderRows, link.OrderID))
			accept(link, sh.shipment.Quantity)
			linked[link.OrderID] = true
			matched[sh.shipment.ID] = true
			summary.Matched++

			outstanding -= covered
			if outstanding < 0 {
				outstanding = 0
			}
		}
	}

	stillPending = make([]*shipmentRow, 0, len(pending))
	for _, sh := range pending {
		if !matched[sh.shipment.ID] {
			stillPending = append(stillPending, sh)
		}
	}
	return stillPending
}

func hasFailedQuantity(links []*domain.MatchLink) bool {
	for _, l := range links {
		if l.QuantityCheck == domain.QuantityFail {
			return true
		}
	}
	return false
}

func orderByID(rows []*orderRow, id string) *domain.Order {
	for _, r := range rows {
		if r.order.ID == id {
			return r.order
		}
	}
	return nil
}

func quantityOf(rows []*shipmentRow, shipmentID string) int {
	for _, r := range rows {
		if r.shipment.ID == shipmentID {
			return r.shipment.Quantity
		}
	}
	return 0
}
