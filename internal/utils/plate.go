package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate lowercases a plate and strips all whitespace. The result is
// the canonical form used for booking lookups and persisted records.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.ToLower(plate) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
