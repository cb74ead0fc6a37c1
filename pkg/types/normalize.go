package types

import (
	"strings"
	"unicode"
)

// Normalize produces the canonical lookup form of a display name: trim,
// collapse internal whitespace, strip non-printable characters, case-fold.
// Registration and every later resolution path must use this exact rule,
// or lookups drift from the stored normalized_name column.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}
