// Package color derives stable display colors from author names.
package color

import (
	"fmt"
	"unicode/utf16"
)

// For maps a name to a "#rrggbb" color. The hash folds UTF-16 code units as
// hash = unit + (hash<<5 - hash) in wrapping int32 arithmetic, so the result
// matches clients that compute it in JavaScript.
func For(name string) string {
	h := hash(name)
	return fmt.Sprintf("#%02x%02x%02x", byte(h>>24), byte(h>>16), byte(h>>8))
}

func hash(name string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(name)) {
		h = int32(unit) + (h<<5 - h)
	}
	return h
}
