// Package rules evaluates per-customer exclusion expressions against
// order and shipment records before they reach the matching engine.
// Expressions are CEL, written against an `order` or `shipment` input,
// e.g. `order.quantity == 0 && order.po_number == ""`.
package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/domain"
)

// Evaluator compiles exclusion expressions once and caches the
// programs. Safe for concurrent use.
type Evaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
	log   zerolog.Logger
}

func NewEvaluator(log zerolog.Logger) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("order", cel.DynType),
		cel.Variable("shipment", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}
	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
		log:   log,
	}, nil
}

// ExcludeOrder reports whether any rule matches the order. A rule that
// fails to compile or evaluate is skipped with a warning; a broken
// rule must never silently drop records.
func (e *Evaluator) ExcludeOrder(rules []string, o *domain.Order) bool {
	return e.excluded(rules, map[string]any{
		"order":    orderInput(o),
		"shipment": map[string]any{},
	})
}

// ExcludeShipment reports whether any rule matches the shipment.
func (e *Evaluator) ExcludeShipment(rules []string, s *domain.Shipment) bool {
	return e.excluded(rules, map[string]any{
		"order":    map[string]any{},
		"shipment": shipmentInput(s),
	})
}

func (e *Evaluator) excluded(rules []string, input map[string]any) bool {
	for _, rule := range rules {
		matched, err := e.evaluate(rule, input)
		if err != nil {
			e.log.Warn().Err(err).Str("rule", rule).Msg("exclusion rule skipped")
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluate(expr string, input map[string]any) (bool, error) {
	e.mu.RLock()
	prg, hit := e.cache[expr]
	e.mu.RUnlock()

	if !hit {
		e.mu.Lock()
		if prg, hit = e.cache[expr]; !hit {
			ast, issues := e.env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("compile: %w", issues.Err())
			}
			p, err := e.env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000),
			)
			if err != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("program: %w", err)
			}
			e.cache[expr] = p
			prg = p
		}
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule result is %T, want bool", out.Value())
	}
	return val, nil
}

// Dates are exposed as RFC3339 strings so rules can compare them
// lexically without CEL timestamp plumbing.
func orderInput(o *domain.Order) map[string]any {
	return map[string]any{
		"order_id":          o.ID,
		"customer":          o.Customer,
		"po_number":         o.PONumber,
		"style_code":        o.StyleCode,
		"color_description": o.ColorDescription,
		"delivery_method":   o.DeliveryMethod,
		"quantity":          o.Quantity,
		"order_type":        string(o.OrderType),
		"order_date":        o.OrderDate.Format(time.RFC3339),
	}
}

func shipmentInput(s *domain.Shipment) map[string]any {
	return map[string]any{
		"shipment_id":       s.ID,
		"customer":          s.Customer,
		"po_number":         s.PONumber,
		"style_code":        s.StyleCode,
		"color_description": s.ColorDescription,
		"delivery_method":   s.DeliveryMethod,
		"quantity":          s.Quantity,
		"shipped_date":      s.ShippedDate.Format(time.RFC3339),
	}
}
