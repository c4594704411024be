package moderation

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// leetTable maps common character substitutions back to the letters they
// imitate. Applied before tokenizing so "b4dw0rd" matches "badword".
var leetTable = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"6", "g",
	"7", "t",
	"8", "b",
	"@", "a",
	"$", "s",
)

// despaceTable strips the separators used to break banned terms apart,
// so "b a d-w.o_r d" collapses to "badword".
var despaceTable = strings.NewReplacer(
	" ", "",
	"-", "",
	"_", "",
	".", "",
)

// Normalizer canonicalizes message text to defeat simple evasion.
// A transform chain keeps per-link buffers between calls and is not safe
// for concurrent use, so Fold checks one out of a pool instead of sharing
// a single instance across goroutines.
type Normalizer struct {
	transformers sync.Pool
}

// NewNormalizer creates a Normalizer with the standard fold chain:
// compatibility decomposition, mark stripping, lowercasing, recomposition.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		transformers: sync.Pool{
			New: func() interface{} {
				return transform.Chain(
					norm.NFKD,
					runes.Remove(runes.In(unicode.Mn)),
					runes.Map(unicode.ToLower),
					norm.NFKC,
				)
			},
		},
	}
}

// Fold case-folds and strips diacritics. Falls back to a plain lowercase
// when the transform fails so callers always get usable text.
func (n *Normalizer) Fold(s string) string {
	if s == "" {
		return ""
	}

	t := n.transformers.Get().(transform.Transformer)
	result, _, err := transform.String(t, s)
	n.transformers.Put(t)

	if err != nil || result == "" {
		return strings.ToLower(s)
	}
	return result
}

// Leetspeak replaces look-alike digits and symbols with the letters they
// stand in for. The input is expected to already be lowercase.
func (n *Normalizer) Leetspeak(s string) string {
	return leetTable.Replace(s)
}

// Despace strips spaces, hyphens, underscores and periods.
func (n *Normalizer) Despace(s string) string {
	return despaceTable.Replace(s)
}
