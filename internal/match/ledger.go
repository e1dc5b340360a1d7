package match

import "github.com/threadline/reconciler/internal/domain"

// Ledger tracks how many units accepted links have consumed from each
// order across all layers of a run. Layer 3 works against the
// remaining (unconsumed) quantity so split shipments can keep drawing
// down the same order without double-counting.
type Ledger struct {
	consumed map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{consumed: make(map[string]int)}
}

// Record charges qty units against the order. Called once per accepted
// link, with the shipment's quantity.
func (l *Ledger) Record(orderID string, qty int) {
	l.consumed[orderID] += qty
}

func (l *Ledger) Consumed(orderID string) int {
	return l.consumed[orderID]
}

// Remaining reports the order quantity not yet covered by accepted
// links, floored at zero.
func (l *Ledger) Remaining(o *domain.Order) int {
	r := o.Quantity - l.consumed[o.ID]
	if r < 0 {
		return 0
	}
	return r
}
