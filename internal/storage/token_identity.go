package storage

import "strings"

// NormalizeTokenIdentity canonicalizes a (name, symbol) pair before lookup:
// names are trimmed and compared case-insensitively, symbols are upper-cased.
func NormalizeTokenIdentity(name, symbol string) (string, string) {
	return strings.TrimSpace(name), strings.ToUpper(strings.TrimSpace(symbol))
}
