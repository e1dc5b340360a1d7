package match

import "github.com/threadline/reconciler/internal/domain"

// reviewConfidenceFloor is the confidence under which a link always
// goes to a human, whatever its field verdicts say.
const reviewConfidenceFloor = 0.8

// Review reason codes carried on links routed to a human.
const (
	ReviewReasonQuantityFail     = "QUANTITY_FAIL"
	ReviewReasonDeliveryMismatch = "DELIVERY_MISMATCH"
	ReviewReasonLowConfidence    = "LOW_CONFIDENCE"
)

// ClassifyReview stamps the link with its review routing: links with a
// failed quantity check, a delivery mismatch, or confidence under the
// floor go to PENDING_REVIEW with the reasons listed; everything else
// is auto-approved.
func ClassifyReview(link *domain.MatchLink) {
	var reasons []string
	if link.QuantityCheck == domain.QuantityFail {
		reasons = append(reasons, ReviewReasonQuantityFail)
	}
	if link.DeliveryMatch == domain.DeliveryMismatch {
		reasons = append(reasons, ReviewReasonDeliveryMismatch)
	}
	if link.Confidence < reviewConfidenceFloor {
		reasons = append(reasons, ReviewReasonLowConfidence)
	}

	if len(reasons) == 0 {
		link.ReviewStatus = domain.ReviewAutoApproved
		link.ReviewReasons = nil
		return
	}
	link.ReviewStatus = domain.ReviewPending
	link.ReviewReasons = reasons
}
