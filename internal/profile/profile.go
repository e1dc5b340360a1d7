// Package profile loads and resolves per-customer matching
// configuration: alias sets for free-text customer names, import
// column mappings, similarity thresholds and exclusion rules.
package profile

import "strings"

// Profile is one customer's matching configuration. Files live in the
// profiles directory as customer_<slug>.yaml; any field left out falls
// back to the engine defaults at run time.
type Profile struct {
	Customer                 string    `yaml:"customer" json:"customer"`
	Slug                     string    `yaml:"slug,omitempty" json:"slug,omitempty"`
	Aliases                  []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	MatchFields              []string  `yaml:"match_fields,omitempty" json:"match_fields,omitempty"`
	FuzzyThreshold           float64   `yaml:"fuzzy_threshold,omitempty" json:"fuzzy_threshold,omitempty"`
	QuantityTolerancePercent float64   `yaml:"quantity_tolerance_percent,omitempty" json:"quantity_tolerance_percent,omitempty"`
	OrderColumns             ColumnMap `yaml:"order_columns,omitempty" json:"order_columns,omitempty"`
	ShipmentColumns          ColumnMap `yaml:"shipment_columns,omitempty" json:"shipment_columns,omitempty"`
	ExclusionRules           []string  `yaml:"exclusion_rules,omitempty" json:"exclusion_rules,omitempty"`
}

// ColumnMap names the source spreadsheet columns that feed each
// canonical field during import. Empty entries fall back to the
// built-in header guesses.
type ColumnMap struct {
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	PONumber string `yaml:"po_number,omitempty" json:"po_number,omitempty"`
	Style    string `yaml:"style,omitempty" json:"style,omitempty"`
	Color    string `yaml:"color,omitempty" json:"color,omitempty"`
	Delivery string `yaml:"delivery,omitempty" json:"delivery,omitempty"`
	Quantity string `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Date     string `yaml:"date,omitempty" json:"date,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
}

const (
	// DefaultFuzzyThreshold is the stricter bar used when no profile
	// exists for a customer at all.
	DefaultFuzzyThreshold = 0.85

	DefaultQuantityTolerancePercent = 5.0
)

// Default returns the documented fallback profile for a customer with
// no configuration on file.
func Default(customer string) *Profile {
	return &Profile{
		Customer:                 customer,
		MatchFields:              []string{"style", "color", "delivery"},
		FuzzyThreshold:           DefaultFuzzyThreshold,
		QuantityTolerancePercent: DefaultQuantityTolerancePercent,
	}
}

// Matches reports whether the free-text name refers to this customer,
// either by canonical name or any alias.
func (p *Profile) Matches(name string) bool {
	n := canon(name)
	if n == "" {
		return false
	}
	if canon(p.Customer) == n {
		return true
	}
	for _, a := range p.Aliases {
		if canon(a) == n {
			return true
		}
	}
	return false
}

// Names returns the canonical customer name plus all aliases, for
// building data-store filters that must catch every spelling.
func (p *Profile) Names() []string {
	out := make([]string, 0, len(p.Aliases)+1)
	out = append(out, p.Customer)
	out = append(out, p.Aliases...)
	return out
}

func canon(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// MakeSlug derives the filename slug for a customer name:
// "Northpeak Outfitters" becomes "northpeak_outfitters".
func MakeSlug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
