package match

import (
	"math"

	"github.com/threadline/reconciler/internal/domain"
)

// orderRow caches an order's normalized match fields so layers never
// re-normalize inside their candidate loops.
type orderRow struct {
	order    *domain.Order
	style    string
	color    string
	delivery string
}

func newOrderRow(o *domain.Order) *orderRow {
	return &orderRow{
		order:    o,
		style:    Normalize(o.StyleCode),
		color:    NormalizeColor(o.ColorDescription),
		delivery: Normalize(o.DeliveryMethod),
	}
}

type shipmentRow struct {
	shipment *domain.Shipment
	style    string
	color    string
	delivery string
}

func newShipmentRow(s *domain.Shipment) *shipmentRow {
	return &shipmentRow{
		shipment: s,
		style:    Normalize(s.StyleCode),
		color:    NormalizeColor(s.ColorDescription),
		delivery: Normalize(s.DeliveryMethod),
	}
}

// strategy is one pass of the cascade. attempt returns the link for the
// shipment, or nil when no candidate clears the layer's bar, plus the
// number of candidates examined so the caller can tell "nothing to
// compare against" apart from "compared and rejected".
type strategy interface {
	layer() domain.MatchLayer
	attempt(sh *shipmentRow) (*domain.MatchLink, int)
}

// perfectMatcher links on the full composite key: style, color and
// delivery method all identical after normalization.
type perfectMatcher struct {
	scorer QuantityScorer
	byKey  map[string][]*orderRow
}

func newPerfectMatcher(orders []*orderRow, scorer QuantityScorer) *perfectMatcher {
	byKey := make(map[string][]*orderRow, len(orders))
	for _, o := range orders {
		k := compositeKey(o.style, o.color, o.delivery)
		byKey[k] = append(byKey[k], o)
	}
	return &perfectMatcher{scorer: scorer, byKey: byKey}
}

func (m *perfectMatcher) layer() domain.MatchLayer { return domain.LayerPerfect }

func (m *perfectMatcher) attempt(sh *shipmentRow) (*domain.MatchLink, int) {
	cands := m.byKey[compositeKey(sh.style, sh.color, sh.delivery)]
	if len(cands) == 0 {
		return nil, 0
	}

	var best *orderRow
	var bestQS QuantityScore
	for _, c := range cands {
		qs := m.scorer.Score(c.order.Quantity, sh.shipment.Quantity)
		if best == nil || betterQuantityFit(c, qs, best, bestQS, sh.shipment.Quantity) {
			best, bestQS = c, qs
		}
	}

	return &domain.MatchLink{
		ShipmentID:              sh.shipment.ID,
		OrderID:                 best.order.ID,
		Layer:                   domain.LayerPerfect,
		Confidence:              1.0,
		StyleMatch:              domain.FieldExact,
		ColorMatch:              domain.FieldExact,
		DeliveryMatch:           domain.DeliveryMatched,
		QuantityCheck:           bestQS.Status,
		QuantityVariancePercent: bestQS.VariancePercent,
	}, len(cands)
}

// betterQuantityFit ranks candidates within an exact-key bucket: higher
// quantity score first, then smaller absolute quantity gap, then
// lexically smaller order id so reruns pick the same winner.
func betterQuantityFit(a *orderRow, aqs QuantityScore, b *orderRow, bqs QuantityScore, shipQty int) bool {
	if aqs.Score != bqs.Score {
		return aqs.Score > bqs.Score
	}
	da := absInt(a.order.Quantity - shipQty)
	db := absInt(b.order.Quantity - shipQty)
	if da != db {
		return da < db
	}
	return a.order.ID < b.order.ID
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// deliveryFlexMatcher links on exact style and color, letting the
// delivery method differ. Quantity carries most of the weight so a
// shipment rerouted from SEA to AIR still finds its order.
type deliveryFlexMatcher struct {
	scorer QuantityScorer
	byKey  map[string][]*orderRow
}

const (
	flexQuantityWeight = 0.7
	flexDeliveryWeight = 0.3
	flexAcceptScore    = 0.6
)

func newDeliveryFlexMatcher(orders []*orderRow, scorer QuantityScorer) *deliveryFlexMatcher {
	byKey := make(map[string][]*orderRow, len(orders))
	for _, o := range orders {
		k := compositeKey(o.style, o.color)
		byKey[k] = append(byKey[k], o)
	}
	return &deliveryFlexMatcher{scorer: scorer, byKey: byKey}
}

func (m *deliveryFlexMatcher) layer() domain.MatchLayer { return domain.LayerDeliveryFlex }

func (m *deliveryFlexMatcher) attempt(sh *shipmentRow) (*domain.MatchLink, int) {
	cands := m.byKey[compositeKey(sh.style, sh.color)]
	if len(cands) == 0 {
		return nil, 0
	}

	var best *orderRow
	var bestQS QuantityScore
	var bestScore, bestDeliverySim float64
	for _, c := range cands {
		qs := m.scorer.Score(c.order.Quantity, sh.shipment.Quantity)
		dsim := DeliverySimilarity(c.delivery, sh.delivery)
		score := flexQuantityWeight*qs.Score + flexDeliveryWeight*dsim
		if best == nil || betterCombinedFit(c, score, best, bestScore, sh.shipment.Quantity) {
			best, bestQS, bestScore, bestDeliverySim = c, qs, score, dsim
		}
	}
	if bestScore < flexAcceptScore {
		return nil, len(cands)
	}

	return &domain.MatchLink{
		ShipmentID:              sh.shipment.ID,
		OrderID:                 best.order.ID,
		Layer:                   domain.LayerDeliveryFlex,
		Confidence:              math.Min(0.95, 0.85+bestScore*0.1),
		StyleMatch:              domain.FieldExact,
		ColorMatch:              domain.FieldExact,
		DeliveryMatch:           DeliveryVerdict(bestDeliverySim),
		QuantityCheck:           bestQS.Status,
		QuantityVariancePercent: bestQS.VariancePercent,
	}, len(cands)
}

func betterCombinedFit(a *orderRow, aScore float64, b *orderRow, bScore float64, shipQty int) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	da := absInt(a.order.Quantity - shipQty)
	db := absInt(b.order.Quantity - shipQty)
	if da != db {
		return da < db
	}
	return a.order.ID < b.order.ID
}

// fuzzyMatcher tolerates typos and formatting drift in style and color.
// Both fields must clear the customer's fuzzy threshold before a
// candidate is considered at all.
type fuzzyMatcher struct {
	scorer    QuantityScorer
	threshold float64
	orders    []*orderRow
}

const (
	fuzzyStyleWeight    = 0.4
	fuzzyColorWeight    = 0.3
	fuzzyQuantityWeight = 0.2
	fuzzyDeliveryWeight = 0.1
	fuzzyAcceptScore    = 0.7
	exactSimilarity     = 0.99
)

func newFuzzyMatcher(orders []*orderRow, scorer QuantityScorer, threshold float64) *fuzzyMatcher {
	return &fuzzyMatcher{scorer: scorer, threshold: threshold, orders: orders}
}

func (m *fuzzyMatcher) layer() domain.MatchLayer { return domain.LayerFuzzy }

func (m *fuzzyMatcher) attempt(sh *shipmentRow) (*domain.MatchLink, int) {
	var best *orderRow
	var bestQS QuantityScore
	var bestScore, bestStyleSim, bestColorSim, bestDeliverySim float64
	candidates := 0

	for _, c := range m.orders {
		styleSim := Similarity(c.style, sh.style)
		if styleSim < m.threshold {
			continue
		}
		colorSim := Similarity(c.color, sh.color)
		if colorSim < m.threshold {
			continue
		}
		candidates++

		qs := m.scorer.Score(c.order.Quantity, sh.shipment.Quantity)
		dsim := DeliverySimilarity(c.delivery, sh.delivery)
		score := fuzzyStyleWeight*styleSim +
			fuzzyColorWeight*colorSim +
			fuzzyQuantityWeight*qs.Score +
			fuzzyDeliveryWeight*dsim
		if best == nil || betterCombinedFit(c, score, best, bestScore, sh.shipment.Quantity) {
			best, bestQS = c, qs
			bestScore, bestStyleSim, bestColorSim, bestDeliverySim = score, styleSim, colorSim, dsim
		}
	}
	if best == nil {
		return nil, 0
	}
	if bestScore < fuzzyAcceptScore {
		return nil, candidates
	}

	return &domain.MatchLink{
		ShipmentID:              sh.shipment.ID,
		OrderID:                 best.order.ID,
		Layer:                   domain.LayerFuzzy,
		Confidence:              math.Min(0.85, 0.6+bestScore*0.25),
		StyleMatch:              fieldVerdict(bestStyleSim),
		ColorMatch:              fieldVerdict(bestColorSim),
		DeliveryMatch:           DeliveryVerdict(bestDeliverySim),
		QuantityCheck:           bestQS.Status,
		QuantityVariancePercent: bestQS.VariancePercent,
	}, candidates
}

func fieldVerdict(sim float64) domain.FieldMatch {
	if sim >= exactSimilarity {
		return domain.FieldExact
	}
	return domain.FieldFuzzy
}
