package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString prepares free text (deposit references, withdrawal
// addresses, rejection reasons) for storage on a ledger row. Control
// characters are dropped and the result is cut to at most maxLen bytes
// without splitting a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input))
	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
