package domain

import "time"

// MatchLayer identifies which pass of the engine produced a link.
type MatchLayer int

const (
	LayerPerfect      MatchLayer = 0
	LayerDeliveryFlex MatchLayer = 1
	LayerFuzzy        MatchLayer = 2
	LayerQuantity     MatchLayer = 3
	LayerOracle       MatchLayer = 4
)

func (l MatchLayer) String() string {
	switch l {
	case LayerPerfect:
		return "perfect"
	case LayerDeliveryFlex:
		return "delivery-flex"
	case LayerFuzzy:
		return "fuzzy"
	case LayerQuantity:
		return "quantity"
	case LayerOracle:
		return "oracle"
	default:
		return "unknown"
	}
}

type FieldMatch string

const (
	FieldExact FieldMatch = "EXACT"
	FieldFuzzy FieldMatch = "FUZZY"
	FieldNone  FieldMatch = "NONE"
)

type DeliveryMatch string

const (
	DeliveryMatched  DeliveryMatch = "MATCH"
	DeliverySimilar  DeliveryMatch = "SIMILAR"
	DeliveryMismatch DeliveryMatch = "MISMATCH"
)

type QuantityStatus string

const (
	QuantityPass        QuantityStatus = "PASS"
	QuantityConditional QuantityStatus = "CONDITIONAL"
	QuantityFail        QuantityStatus = "FAIL"
)

type ReviewStatus string

const (
	ReviewAutoApproved ReviewStatus = "AUTO_APPROVED"
	ReviewPending      ReviewStatus = "PENDING_REVIEW"
	ReviewApproved     ReviewStatus = "APPROVED"
	ReviewRejected     ReviewStatus = "REJECTED"
)

type UnmatchReason string

const (
	ReasonNoCandidates    UnmatchReason = "NO_CANDIDATES"
	ReasonBelowThreshold  UnmatchReason = "BELOW_THRESHOLD"
	ReasonInvalidQuantity UnmatchReason = "INVALID_QUANTITY"
)

// MatchLink asserts that a shipment fulfils (part of) an order. ID and
// RunID are assigned at persistence time; the engine leaves them empty.
type MatchLink struct {
	ID                      string         `json:"id,omitempty"`
	RunID                   string         `json:"run_id,omitempty"`
	ShipmentID              string         `json:"shipment_id"`
	OrderID                 string         `json:"order_id"`
	Layer                   MatchLayer     `json:"layer"`
	Confidence              float64        `json:"confidence"`
	StyleMatch              FieldMatch     `json:"style_match"`
	ColorMatch              FieldMatch     `json:"color_match"`
	DeliveryMatch           DeliveryMatch  `json:"delivery_match"`
	QuantityCheck           QuantityStatus `json:"quantity_check"`
	QuantityVariancePercent float64        `json:"quantity_variance_percent"`
	ReviewStatus            ReviewStatus   `json:"review_status,omitempty"`
	ReviewReasons           []string       `json:"review_reasons,omitempty"`
	ReviewNote              string         `json:"review_note,omitempty"`
}

// UnmatchedShipment is a shipment no layer could link, tagged with why.
type UnmatchedShipment struct {
	Shipment
	Reason UnmatchReason `json:"reason"`
}

// LayerSummary reports what one layer saw and produced. A layer that
// received no input still gets a summary with Examined == 0.
type LayerSummary struct {
	Layer    MatchLayer `json:"layer"`
	Examined int        `json:"examined"`
	Matched  int        `json:"matched"`
	Failed   bool       `json:"failed,omitempty"`
}

// RunResult is the complete outcome of one matching run over a
// (customer, po_number) scope. Links preserve emission order; Unmatched
// preserves shipment input order.
type RunResult struct {
	RunID          string              `json:"run_id,omitempty"`
	Customer       string              `json:"customer"`
	PONumber       string              `json:"po_number,omitempty"`
	CreatedAt      time.Time           `json:"created_at,omitempty"`
	OrderCount     int                 `json:"order_count"`
	ShipmentCount  int                 `json:"shipment_count"`
	Links          []MatchLink         `json:"links"`
	Unmatched      []UnmatchedShipment `json:"unmatched"`
	Layers         []LayerSummary      `json:"layers"`
	SkippedOrders  []string            `json:"skipped_orders,omitempty"`
	ExcludedOrders int                 `json:"excluded_orders,omitempty"`
}

// MatchedShipments counts distinct shipments that hold at least one link.
func (r *RunResult) MatchedShipments() int {
	seen := make(map[string]struct{}, len(r.Links))
	for _, l := range r.Links {
		seen[l.ShipmentID] = struct{}{}
	}
	return len(seen)
}
