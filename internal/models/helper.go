package models

import "strings"

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeText prepares free-text answers for comparison: surrounding
// whitespace is ignored and matching is case-insensitive.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
