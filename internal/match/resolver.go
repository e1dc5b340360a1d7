package match

import (
	"math"

	"github.com/threadline/reconciler/internal/domain"
)

// quantityResolver is the last deterministic pass. It works entirely in
// remaining quantities: an order's unconsumed units against a
// shipment's unattributed units, so one order split across several
// cartons resolves without double-counting and a short-shipped order
// can absorb a later top-up carton.
type quantityResolver struct {
	scorer    QuantityScorer
	threshold float64
	orders    []*orderRow
}

const resolverAcceptScore = 0.4

func newQuantityResolver(orders []*orderRow, scorer QuantityScorer, threshold float64) *quantityResolver {
	return &quantityResolver{scorer: scorer, threshold: threshold, orders: orders}
}

// attempt links sh's outstanding units against the order whose
// remaining quantity fits best. linked holds order ids already tied to
// this shipment; those are never proposed again. Returns nil when no
// eligible order clears the acceptance bar.
func (r *quantityResolver) attempt(sh *shipmentRow, outstanding int, linked map[string]bool, ledger *Ledger) (*domain.MatchLink, int) {
	var best *orderRow
	var bestQS QuantityScore
	var bestStyleSim, bestColorSim, bestDeliverySim float64
	bestRemaining := 0
	candidates := 0

	for _, c := range r.orders {
		if linked[c.order.ID] {
			continue
		}
		remaining := ledger.Remaining(c.order)
		if remaining <= 0 {
			continue
		}
		styleSim := Similarity(c.style, sh.style)
		if styleSim < r.threshold {
			continue
		}
		colorSim := Similarity(c.color, sh.color)
		if colorSim < r.threshold {
			continue
		}
		candidates++

		qs := r.scorer.Score(remaining, outstanding)
		if best == nil || betterResolution(c, qs, remaining, best, bestQS, bestRemaining, outstanding) {
			best, bestQS, bestRemaining = c, qs, remaining
			bestStyleSim, bestColorSim = styleSim, colorSim
			bestDeliverySim = DeliverySimilarity(c.delivery, sh.delivery)
		}
	}
	if best == nil {
		return nil, 0
	}
	if bestQS.Score < resolverAcceptScore {
		return nil, candidates
	}

	return &domain.MatchLink{
		ShipmentID:              sh.shipment.ID,
		OrderID:                 best.order.ID,
		Layer:                   domain.LayerQuantity,
		Confidence:              math.Min(0.75, 0.6*bestQS.Score+0.2*bestDeliverySim+0.2),
		StyleMatch:              fieldVerdict(bestStyleSim),
		ColorMatch:              fieldVerdict(bestColorSim),
		DeliveryMatch:           DeliveryVerdict(bestDeliverySim),
		QuantityCheck:           bestQS.Status,
		QuantityVariancePercent: bestQS.VariancePercent,
	}, candidates
}

// betterResolution ranks resolver candidates: higher remaining-fit
// score, then the remaining quantity closest to the outstanding units,
// then lexically smaller order id.
func betterResolution(a *orderRow, aqs QuantityScore, aRemaining int, b *orderRow, bqs QuantityScore, bRemaining, outstanding int) bool {
	if aqs.Score != bqs.Score {
		return aqs.Score > bqs.Score
	}
	da := absInt(aRemaining - outstanding)
	db := absInt(bRemaining - outstanding)
	if da != db {
		return da < db
	}
	return a.order.ID < b.order.ID
}
