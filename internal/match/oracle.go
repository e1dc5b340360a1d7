package match

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
)

// Oracle proposes matches for shipments the deterministic layers could
// not link. Implementations typically call out to an external model;
// the engine treats them as best-effort and never blocks a run on one.
type Oracle interface {
	ProposeMatches(ctx context.Context, shipments []domain.Shipment, orders []domain.Order) ([]Proposal, error)
}

// Proposal points into the shipment and order slices handed to
// ProposeMatches. Confidence is the oracle's own estimate on [0,1].
type Proposal struct {
	ShipmentIndex int     `json:"shipment_index"`
	OrderIndex    int     `json:"order_index"`
	Confidence    float64 `json:"confidence"`
}

// minOracleConfidence is the floor below which proposals are discarded
// rather than surfaced as links.
const minOracleConfidence = 0.85

// oraclePass turns validated proposals into links. Out-of-range
// indexes, low confidence, duplicate pairs and shipments the oracle
// proposes twice are dropped with a log line. An oracle error is not a
// run error: the pass just produces nothing.
func oraclePass(ctx context.Context, oracle Oracle, pending []*shipmentRow, orders []*orderRow, scorer QuantityScorer, log zerolog.Logger) []*domain.MatchLink {
	if len(pending) == 0 || len(orders) == 0 {
		return nil
	}

	shipments := make([]domain.Shipment, len(pending))
	for i, row := range pending {
		shipments[i] = *row.shipment
	}
	orderList := make([]domain.Order, len(orders))
	for i, row := range orders {
		orderList[i] = *row.order
	}

	proposals, err := oracle.ProposeMatches(ctx, shipments, orderList)
	if err != nil {
		log.Warn().Err(err).Msg("oracle pass failed, continuing without it")
		return nil
	}

	var links []*domain.MatchLink
	usedShipments := make(map[int]bool)
	usedPairs := make(map[[2]int]bool)
	for _, p := range proposals {
		if p.ShipmentIndex < 0 || p.ShipmentIndex >= len(pending) ||
			p.OrderIndex < 0 || p.OrderIndex >= len(orders) {
			log.Warn().Int("shipment_index", p.ShipmentIndex).Int("order_index", p.OrderIndex).
				Msg("oracle proposal out of range, dropped")
			continue
		}
		if p.Confidence < minOracleConfidence {
			log.Debug().Float64("confidence", p.Confidence).Msg("oracle proposal below confidence floor, dropped")
			continue
		}
		pair := [2]int{p.ShipmentIndex, p.OrderIndex}
		if usedPairs[pair] || usedShipments[p.ShipmentIndex] {
			continue
		}
		usedPairs[pair] = true
		usedShipments[p.ShipmentIndex] = true

		sh := pending[p.ShipmentIndex]
		ord := orders[p.OrderIndex]
		conf := p.Confidence
		if conf > 1 {
			conf = 1
		}
		qs := scorer.Score(ord.order.Quantity, sh.shipment.Quantity)
		dsim := DeliverySimilarity(ord.delivery, sh.delivery)
		links = append(links, &domain.MatchLink{
			ShipmentID:              sh.shipment.ID,
			OrderID:                 ord.order.ID,
			Layer:                   domain.LayerOracle,
			Confidence:              conf,
			StyleMatch:              oracleFieldVerdict(Similarity(ord.style, sh.style)),
			ColorMatch:              oracleFieldVerdict(Similarity(ord.color, sh.color)),
			DeliveryMatch:           DeliveryVerdict(dsim),
			QuantityCheck:           qs.Status,
			QuantityVariancePercent: qs.VariancePercent,
		})
	}
	return links
}

// oracleFieldVerdict classifies fields on oracle links. Unlike the
// deterministic layers, the oracle can pair rows with no textual
// agreement at all, so NONE is a possible outcome here.
func oracleFieldVerdict(sim float64) domain.FieldMatch {
	switch {
	case sim >= exactSimilarity:
		return domain.FieldExact
	case sim >= 0.5:
		return domain.FieldFuzzy
	default:
		return domain.FieldNone
	}
}
