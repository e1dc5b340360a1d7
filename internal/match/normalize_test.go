package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc123", "ABC123"},
		{"  abc  123 ", "ABC 123"},
		{"Air", "AIR"},
		{"\tsea \n freight", "SEA FREIGHT"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestNormalizeColor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ARCTIC/BLUE", "ARCTIC BLUE"},
		{"ARCTIC - BLUE", "ARCTIC BLUE"},
		{"arctic blue", "ARCTIC BLUE"},
		{"NAVY/WHITE/RED", "NAVY WHITE RED"},
		{"heather-grey", "HEATHER GREY"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeColor(tc.in), "NormalizeColor(%q)", tc.in)
	}
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "A|B|C", compositeKey("A", "B", "C"))
	assert.Equal(t, "A|B", compositeKey("A", "B"))
	assert.Equal(t, "||", compositeKey("", "", ""))
}
