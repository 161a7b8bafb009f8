package matcher

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/sells-group/minesite-cli/internal/model"
)

// Similarity scores two normalized names in [0,1], 1 meaning identical.
type Similarity interface {
	Name() string
	Score(a, b string) float64
}

// Levenshtein scores names by edit distance relative to the longer name.
type Levenshtein struct{}

// Name implements Similarity.
func (Levenshtein) Name() string { return "levenshtein" }

// Score implements Similarity as 1 - distance/max(len(a), len(b)) over runes.
func (Levenshtein) Score(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// NewSimilarity resolves a similarity capability by name. "exact" and any
// unknown name return model.ErrCapabilityUnavailable, in which case callers
// fall back to exact normalized matching.
func NewSimilarity(name string) (Similarity, error) {
	switch name {
	case "", "levenshtein":
		return Levenshtein{}, nil
	case "exact":
		return nil, eris.Wrap(model.ErrCapabilityUnavailable, "matcher: exact matching requested")
	default:
		return nil, eris.Wrapf(model.ErrCapabilityUnavailable, "matcher: unknown similarity %q", name)
	}
}
