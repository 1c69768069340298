package utils

import (
	"strings"
)

// StringPtr returns a pointer to the string value
func StringPtr(s string) *string {
	return &s
}

// NormalizeText lowercases a string and collapses internal whitespace. Used
// for natural-key comparisons on question text.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
