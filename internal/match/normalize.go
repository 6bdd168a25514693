// Package match compiles search words and counts whole-word occurrences in
// normalized text.
package match

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer strips diacritics and folds case. A Normalizer holds transformer
// state and must not be shared between goroutines; each worker builds its own.
type Normalizer struct {
	strip transform.Transformer
	fold  cases.Caser
}

// NewNormalizer returns a ready Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		strip: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		fold:  cases.Fold(),
	}
}

// String returns s case-folded and without combining marks. Folding runs
// first so marks introduced by a fold mapping are stripped too.
func (n *Normalizer) String(s string) string {
	folded := n.fold.String(s)
	stripped, _, err := transform.String(n.strip, folded)
	if err != nil {
		return folded
	}
	return stripped
}

// Normalize is a convenience for one-off calls outside the scan loop.
func Normalize(s string) string {
	return NewNormalizer().String(s)
}
