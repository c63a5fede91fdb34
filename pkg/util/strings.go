package util

import "strings"

// NormalizeSymbol trims and upper-cases a currency symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
