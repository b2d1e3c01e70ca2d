package hashutil

import (
	"strings"
	"unicode"
)

// Tokenize splits text on camel-case boundaries and non-alphanumeric runs,
// lower-casing the result. The function is total (never errors) and
// order-preserving (tokens appear in source order), as required by spec §4.1.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// camelCase boundary: lower/digit followed by upper starts a new token.
			if cur.Len() > 0 && unicode.IsUpper(r) {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					flush()
				} else if i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(prev) {
					// ABCDef -> ABC | Def
					flush()
				}
			}
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
