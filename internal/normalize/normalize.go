// Package normalize canonicalizes user-supplied values before they hit
// storage or an index-backed query, so lookups match regardless of how
// the value was typed.
package normalize

import "strings"

// Keywords returns a normalized form of a search string for the text
// index: trimmed, lower-cased, inner whitespace collapsed.
func Keywords(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Phone canonicalizes a contact phone number for the contactPhone
// index: digits only, with a single leading + preserved when present.
func Phone(p string) string {
	p = strings.TrimSpace(p)
	var b strings.Builder
	for i, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
