package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const northpeakYAML = `customer: Northpeak Outfitters
aliases:
  - NORTHPEAK
  - NP OUTFITTERS
fuzzy_threshold: 0.8
quantity_tolerance_percent: 5
match_fields: [style, color, delivery]
order_columns:
  style: "Style No."
  color: "Colorway"
shipment_columns:
  style: "STYLE"
  color: "COLOR DESC"
exclusion_rules:
  - 'order.order_type == "CANCELLED"'
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "customer_northpeak_outfitters.yaml", northpeakYAML)

	p, err := LoadProfile(dir, "northpeak_outfitters")
	require.NoError(t, err)
	assert.Equal(t, "Northpeak Outfitters", p.Customer)
	assert.Equal(t, "northpeak_outfitters", p.Slug)
	assert.Equal(t, 0.8, p.FuzzyThreshold)
	assert.Equal(t, "Style No.", p.OrderColumns.Style)
	assert.Len(t, p.ExclusionRules, 1)
}

func TestLoadProfileMissing(t *testing.T) {
	_, err := LoadProfile(t.TempDir(), "nobody")
	assert.Error(t, err)
}

func TestLoadProfileRejectsNamelessFile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "customer_broken.yaml", "fuzzy_threshold: 0.9\n")
	_, err := LoadProfile(dir, "broken")
	assert.ErrorContains(t, err, "no customer name")
}

func TestRegistryResolve(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "customer_northpeak_outfitters.yaml", northpeakYAML)
	writeProfile(t, dir, "customer_harbor_thread.yaml", "customer: Harbor & Thread\nfuzzy_threshold: 0.9\n")

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	p, ok := reg.Resolve("Northpeak Outfitters")
	require.True(t, ok)
	assert.Equal(t, "Northpeak Outfitters", p.Customer)

	// Aliases resolve regardless of case and spacing.
	p, ok = reg.Resolve("np  outfitters")
	require.True(t, ok)
	assert.Equal(t, "Northpeak Outfitters", p.Customer)

	_, ok = reg.Resolve("Unknown Retail Co")
	assert.False(t, ok)
}

func TestLoadRegistryMissingDirIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
}

func TestDefaultProfile(t *testing.T) {
	p := Default("Acme Apparel")
	assert.Equal(t, "Acme Apparel", p.Customer)
	assert.Equal(t, 0.85, p.FuzzyThreshold)
	assert.Equal(t, 5.0, p.QuantityTolerancePercent)
	assert.Equal(t, []string{"style", "color", "delivery"}, p.MatchFields)
}

func TestMakeSlug(t *testing.T) {
	assert.Equal(t, "northpeak_outfitters", MakeSlug("Northpeak Outfitters"))
	assert.Equal(t, "harbor_thread", MakeSlug("Harbor & Thread"))
	assert.Equal(t, "acme_2000", MakeSlug(" ACME-2000! "))
}

func TestProfileMatches(t *testing.T) {
	p := &Profile{Customer: "Northpeak Outfitters", Aliases: []string{"NORTHPEAK", "NP OUTFITTERS"}}
	assert.True(t, p.Matches("northpeak outfitters"))
	assert.True(t, p.Matches("NORTHPEAK"))
	assert.True(t, p.Matches("  np   outfitters "))
	assert.False(t, p.Matches("Harbor & Thread"))
	assert.False(t, p.Matches(""))
}
