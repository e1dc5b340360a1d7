package match

import (
	"strings"

	"github.com/threadline/reconciler/internal/domain"
)

// deliveryGroups maps a canonical delivery method to the synonyms
// vendors use for it. Keys count as members of their own group.
var deliveryGroups = map[string][]string{
	"AIR":    {"EXPRESS", "EXPEDITED", "OVERNIGHT"},
	"GROUND": {"STANDARD", "REGULAR"},
	"SEA":    {"OCEAN", "BOAT"},
}

// deliveryGroupOf resolves a normalized delivery value to its canonical
// group key, or "" when the value is not in the synonym table.
func deliveryGroupOf(v string) string {
	if _, ok := deliveryGroups[v]; ok {
		return v
	}
	for key, members := range deliveryGroups {
		for _, m := range members {
			if m == v {
				return key
			}
		}
	}
	return ""
}

// DeliverySimilarity scores two delivery methods on [0,1]. Inputs are
// normalized internally. Exact matches score 1.0, synonyms of the same
// group 0.9, and a free-text value that names a known group key 0.8.
// A blank value on either side is neutral (0.5): missing data neither
// penalizes nor rewards a candidate. Anything else falls back to
// fuzzy string similarity.
func DeliverySimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0.5
	}
	if na == nb {
		return 1.0
	}

	ga, gb := deliveryGroupOf(na), deliveryGroupOf(nb)
	switch {
	case ga != "" && ga == gb:
		return 0.9
	case ga != "" && gb == "" && containsToken(nb, ga):
		return 0.8
	case gb != "" && ga == "" && containsToken(na, gb):
		return 0.8
	}

	return Similarity(na, nb)
}

func containsToken(s, token string) bool {
	for _, t := range strings.Fields(s) {
		if t == token {
			return true
		}
	}
	return false
}

// DeliveryVerdict bands a similarity into the match classification
// carried on links: strong agreement, acceptable variation, or a
// mismatch that review should look at.
func DeliveryVerdict(sim float64) domain.DeliveryMatch {
	switch {
	case sim >= 0.9:
		return domain.DeliveryMatched
	case sim < 0.5:
		return domain.DeliveryMismatch
	default:
		return domain.DeliverySimilar
	}
}
