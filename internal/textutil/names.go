package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// CollapseSpace trims value and reduces interior whitespace runs to one space.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// NormalizeName returns the comparison form of a display name.
func NormalizeName(value string) string {
	value = norm.NFKC.String(value)
	return CollapseSpace(folder.String(value))
}

// SplitNames splits a free-text credit list on ASCII or fullwidth commas,
// dropping empty entries.
func SplitNames(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '，'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := CollapseSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Digits returns only the ASCII digits in value.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripSpace removes every whitespace rune from value.
func StripSpace(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}
