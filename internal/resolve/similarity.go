package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity scores how alike two field names are, in [0, 1]. The exact
// algorithm is pluggable so token overlap can later be swapped for edit
// distance or embeddings without touching the resolver.
type Similarity interface {
	Score(a, b string) float64
}

// TokenOverlap is the default Similarity: normalized token sets compared
// by overlap against the larger set.
type TokenOverlap struct{}

func (TokenOverlap) Score(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	overlap := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if set[t] && !seen[t] {
			overlap++
			seen[t] = true
		}
	}
	den := len(set)
	if n := len(uniq(tb)); n > den {
		den = n
	}
	return float64(overlap) / float64(den)
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokens normalizes a field name to comparable tokens: diacritics
// stripped, lower-cased, split on non-alphanumerics and camelCase
// boundaries, simple plurals singularized.
func tokens(s string) []string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && prevLower {
				flush()
			}
			cur.WriteRune(unicode.ToLower(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		default:
			flush()
			prevLower = false
		}
	}
	flush()

	for i, w := range words {
		words[i] = singularize(w)
	}
	return words
}

// singularize strips a plain trailing "s" from words long enough that the
// strip cannot mangle them ("assets" → "asset", but "ss" stays).
func singularize(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func uniq(ts []string) []string {
	seen := make(map[string]bool, len(ts))
	out := ts[:0:0]
	for _, t := range ts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
