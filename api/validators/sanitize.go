package validators

import (
	"strings"
	"unicode"
)

// SanitizeString normalizes free-text input such as game titles and
// coupon notes: surrounding whitespace is trimmed, control runes are
// dropped, and the result is truncated to maxLen runes so a multibyte
// character is never split.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			return string(runes[:maxLen])
		}
	}
	return cleaned
}
