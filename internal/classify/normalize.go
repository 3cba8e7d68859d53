package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a technician display name for table lookups:
// lowercase, diacritics stripped, surrounding and repeated whitespace
// collapsed. "Gábriel  SILVA Machado " and "gabriel silva machado" map
// to the same key.
func Normalize(name string) string {
	// a fresh chain per call: norm transformers carry state
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, name)
	if err != nil {
		out = name
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
