// Package privacy implements the <private>...</private> stripping filter
// applied to every piece of text before it is embedded or persisted.
package privacy

import "strings"

const redacted = "[REDACTED]"

// Strip removes every <private>...</private> span from s, case-insensitive
// on the tag name, preserving surrounding text and replacing each match with
// "[REDACTED]". An unclosed <private> tag keeps the remainder of the string
// verbatim (the filter only acts on spans it can fully close).
func Strip(s string) string {
	var b strings.Builder
	rest := s
	for {
		openIdx, openLen := findTag(rest, "<private>")
		if openIdx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:openIdx])

		afterOpen := rest[openIdx+openLen:]
		closeIdx, closeLen := findTag(afterOpen, "</private>")
		if closeIdx < 0 {
			// Unclosed tag: keep the remainder verbatim, including the tag itself.
			b.WriteString(rest[openIdx:])
			break
		}

		b.WriteString(redacted)
		rest = afterOpen[closeIdx+closeLen:]
	}
	return b.String()
}

// findTag returns the byte index and length of the first case-insensitive
// occurrence of tag in s, or (-1, 0) if not found.
func findTag(s, tag string) (int, int) {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(tag))
	if idx < 0 {
		return -1, 0
	}
	return idx, len(tag)
}

// IsFullyPrivate reports whether stripping s collapses it to either the
// empty string or a lone "[REDACTED]" marker, meaning the original text
// carried no content worth keeping.
func IsFullyPrivate(s string) bool {
	stripped := strings.TrimSpace(Strip(s))
	return stripped == "" || stripped == redacted
}
