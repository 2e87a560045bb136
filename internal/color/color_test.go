package color

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexColor = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestFor_ReferenceValues(t *testing.T) {
	// Values produced by the JavaScript stringToColor implementation.
	tests := map[string]string{
		"":        "#000000",
		"a":       "#000000",
		"Alice":   "#03c6a6",
		"Anonimo": "#3079e9",
		"Bob":     "#000105",
		"Zoë":     "#000160",
		"😀":       "#001b0d",
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, For(name))
		})
	}
}

func TestFor_FormatAndDeterminism(t *testing.T) {
	names := []string{
		"",
		"x",
		"a much longer display name that overflows the hash many times over",
		"名前",
		"\x00\x01",
		"🚀🚀🚀",
	}

	for _, name := range names {
		got := For(name)
		assert.Regexp(t, hexColor, got, "name %q", name)
		assert.Equal(t, got, For(name), "name %q must be stable", name)
	}
}

func TestHash_Wraps(t *testing.T) {
	assert.Equal(t, int32(0), hash(""))
	assert.Equal(t, int32(63350368), hash("Alice"))
	// Long inputs must wrap rather than saturate.
	assert.NotPanics(t, func() { hash(string(make([]rune, 10000))) })
}
