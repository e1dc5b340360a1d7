// Package match implements the layered matching engine that links
// shipments back to the purchase orders they fulfil. Layers run in a
// fixed cascade from strictest to loosest; every accepted link records
// its provenance (layer, confidence, per-field verdicts) so downstream
// review can reason about trust.
package match

import "strings"

// Normalize upper-cases, trims and collapses internal whitespace.
// All key building and string comparison goes through this first.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeColor additionally folds the separators vendors use
// interchangeably in color descriptions ("NAVY/WHITE", "NAVY-WHITE",
// "NAVY WHITE" all normalize to the same form).
func NormalizeColor(s string) string {
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return Normalize(s)
}

func compositeKey(parts ...string) string {
	return strings.Join(parts, "|")
}
