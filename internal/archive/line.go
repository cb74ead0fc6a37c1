// Package archive implements the shared grammar for chronicle's text
// archives: the delimited line format, the two accepted timestamp forms,
// the prayer block-file format, snapshot documents, and event logs. Every
// writer and every reader goes through this package; no tool re-derives
// parsing rules of its own.
// See docs/ARCHITECTURE § Archive Grammar.
package archive

import "strings"

// Delimiter separates fields within one archive line.
const Delimiter = '|'

// EscapeField makes a payload value safe to embed in a delimited line.
// Backslash, the delimiter, and newlines are escaped; the transformation
// is lossless and reversed by UnescapeField.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, "\\|\n\r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case Delimiter:
			b.WriteString(`\|`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnescapeField reverses EscapeField. Unknown escape sequences keep the
// escaped character verbatim so hand-edited archives degrade gracefully
// instead of failing.
func UnescapeField(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case 'n':
			b.WriteRune('\n')
		case 'r':
			b.WriteRune('\r')
		default:
			b.WriteRune(r)
		}
		escaped = false
	}
	if escaped {
		b.WriteRune('\\')
	}
	return b.String()
}

// JoinFields escapes each field and joins them into one archive line
// (without a trailing newline).
func JoinFields(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, string(Delimiter))
}

// SplitFields splits an archive line on unescaped delimiters and
// unescapes each field.
func SplitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		if escaped {
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case Delimiter:
			fields = append(fields, UnescapeField(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	fields = append(fields, UnescapeField(cur.String()))
	return fields
}
