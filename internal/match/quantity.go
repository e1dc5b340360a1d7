package match

import (
	"math"

	"github.com/threadline/reconciler/internal/domain"
)

// QuantityScore grades how well a shipped quantity covers an ordered
// quantity. Score is the banded ranking signal used by the layers;
// Status is the pass/fail verdict used by review; VariancePercent is
// signed, positive when the shipment over-delivers.
type QuantityScore struct {
	Score           float64
	Status          domain.QuantityStatus
	VariancePercent float64
}

// QuantityScorer bands quantity deviation. TolerancePercent is the
// customer's acceptable deviation: at or under it the check passes,
// up to twice it the check is conditional, beyond that it fails.
type QuantityScorer struct {
	TolerancePercent float64
}

const defaultQuantityTolerance = 5.0

func NewQuantityScorer(tolerancePercent float64) QuantityScorer {
	if tolerancePercent <= 0 {
		tolerancePercent = defaultQuantityTolerance
	}
	return QuantityScorer{TolerancePercent: tolerancePercent}
}

// Score grades shipmentQty against orderQty. A non-positive order
// quantity cannot express a deviation: it scores zero and fails, except
// for the degenerate zero-against-zero case which passes cleanly.
func (s QuantityScorer) Score(orderQty, shipmentQty int) QuantityScore {
	if orderQty <= 0 {
		if shipmentQty == 0 {
			return QuantityScore{Score: 1, Status: domain.QuantityPass, VariancePercent: 0}
		}
		return QuantityScore{Score: 0, Status: domain.QuantityFail, VariancePercent: 100}
	}

	diff := math.Abs(float64(orderQty-shipmentQty)) / float64(orderQty) * 100
	variance := float64(shipmentQty-orderQty) / float64(orderQty) * 100

	var score float64
	switch {
	case diff <= 5:
		score = 1.0
	case diff <= 10:
		score = 0.8
	case diff <= 25:
		score = 0.6
	case diff <= 50:
		score = 0.4
	default:
		score = 0.2
	}

	tol := s.TolerancePercent
	if tol <= 0 {
		tol = defaultQuantityTolerance
	}
	var status domain.QuantityStatus
	switch {
	case diff <= tol:
		status = domain.QuantityPass
	case diff <= 2*tol:
		status = domain.QuantityConditional
	default:
		status = domain.QuantityFail
	}

	return QuantityScore{Score: score, Status: status, VariancePercent: variance}
}
