package dedupe

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint returns the 64-bit SimHash of the word tokens in parts.
// Tokens are lowercased and stripped of accents, so "Montréal" and
// "MONTREAL" contribute the same bits.
func Fingerprint(parts ...string) uint64 {
	var weights [64]int
	for _, tok := range tokens(strings.Join(parts, " ")) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range 64 {
			if sum&(1<<i) != 0 {
				weights[i]++
			} else {
				weights[i]--
			}
		}
	}

	var fp uint64
	for i, w := range weights {
		if w > 0 {
			fp |= 1 << i
		}
	}
	return fp
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func tokens(s string) []string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
