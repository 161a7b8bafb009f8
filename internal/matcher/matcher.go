// Package matcher finds gazetteer names mentioned in filing text.
package matcher

import (
	"slices"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/gazetteer"
	"github.com/sells-group/minesite-cli/internal/model"
)

const (
	// DefaultThreshold is the minimum similarity a candidate must reach.
	DefaultThreshold = 0.8
	// DefaultMaxWindow is the longest phrase, in words, compared against the
	// gazetteer.
	DefaultMaxWindow = 5
)

// Options configures a Matcher.
type Options struct {
	// Threshold is the minimum score kept. Zero means DefaultThreshold.
	Threshold float64
	// MaxWindow is the longest phrase in words. Zero means DefaultMaxWindow.
	MaxWindow int
	// Similarity names the scoring capability ("levenshtein" or "exact").
	Similarity string
	// Jurisdiction drops candidates whose gazetteer jurisdiction does not
	// cover the jurisdiction passed to MatchWithin.
	Jurisdiction bool
}

// Matcher scores filing phrases against a gazetteer. The similarity
// capability is resolved once, in New.
type Matcher struct {
	gaz       *gazetteer.Gazetteer
	sim       Similarity
	threshold float64
	maxWindow int
	within    bool
	memo      *gocache.Cache
}

// hit is an above-threshold score of one phrase against one entry.
type hit struct {
	order int
	key   string
	score float64
}

// New builds a Matcher over g. When the requested similarity is unavailable
// the matcher compares normalized names for equality and scores matches 1.0.
func New(g *gazetteer.Gazetteer, opts Options) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = DefaultMaxWindow
	}

	sim, err := NewSimilarity(opts.Similarity)
	if err != nil {
		zap.L().Info("fuzzy similarity unavailable, using exact name matching",
			zap.String("component", "matcher"),
			zap.String("requested", opts.Similarity),
			zap.Error(err),
		)
	}

	return &Matcher{
		gaz:       g,
		sim:       sim,
		threshold: opts.Threshold,
		maxWindow: opts.MaxWindow,
		within:    opts.Jurisdiction,
		memo:      gocache.New(gocache.NoExpiration, 0),
	}
}

// Exact reports whether the matcher fell back to exact matching.
func (m *Matcher) Exact() bool {
	return m.sim == nil
}

// Threshold returns the minimum score the matcher keeps.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match returns candidates for text ranked by score, ties broken by gazetteer
// insertion order. Each entry appears at most once, with its best phrase.
func (m *Matcher) Match(text string) []model.MatchCandidate {
	return m.MatchWithin(text, "")
}

// MatchWithin is Match for a filing located in jurisdiction. With the
// jurisdiction filter enabled and jurisdiction non-empty, an entry is kept
// only when its normalized jurisdiction contains the filing's.
func (m *Matcher) MatchWithin(text, jurisdiction string) []model.MatchCandidate {
	if m.gaz.Empty() {
		return nil
	}
	want := ""
	if m.within {
		want = gazetteer.Normalize(jurisdiction)
	}
	entries := m.gaz.Entries()

	type best struct {
		hit
		phrase Phrase
	}
	byEntry := make(map[int]best)
	for _, p := range Phrases(text, m.maxWindow) {
		for _, h := range m.score(p.Key) {
			if want != "" && !strings.Contains(gazetteer.Normalize(entries[h.order].Jurisdiction), want) {
				continue
			}
			if cur, ok := byEntry[h.order]; ok && cur.score >= h.score {
				continue
			}
			byEntry[h.order] = best{hit: h, phrase: p}
		}
	}
	if len(byEntry) == 0 {
		return nil
	}

	out := make([]model.MatchCandidate, 0, len(byEntry))
	for _, b := range byEntry {
		e := entries[b.order]
		out = append(out, model.MatchCandidate{
			Name:         e.Name,
			Key:          b.key,
			Latitude:     e.Latitude,
			Longitude:    e.Longitude,
			Jurisdiction: e.Jurisdiction,
			Source:       e.Source,
			Phrase:       b.phrase.Text,
			Offset:       b.phrase.Offset,
			Score:        b.score,
			Order:        b.order,
		})
	}
	slices.SortFunc(out, func(a, b model.MatchCandidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.Order - b.Order
		}
	})
	return out
}

// score compares one normalized phrase with every gazetteer key and returns
// the best above-threshold hit per entry. Results are memoized per phrase.
func (m *Matcher) score(phrase string) []hit {
	if v, ok := m.memo.Get(phrase); ok {
		return v.([]hit)
	}

	var hits []hit
	if m.sim == nil {
		if e, ok := m.gaz.Lookup(phrase); ok {
			hits = append(hits, hit{order: e.Order, key: phrase, score: 1})
		}
	} else {
		seen := make(map[int]int)
		for key, e := range m.gaz.All() {
			s := m.sim.Score(phrase, key)
			if s < m.threshold {
				continue
			}
			if i, ok := seen[e.Order]; ok {
				if s > hits[i].score {
					hits[i] = hit{order: e.Order, key: key, score: s}
				}
				continue
			}
			seen[e.Order] = len(hits)
			hits = append(hits, hit{order: e.Order, key: key, score: s})
		}
	}

	m.memo.Set(phrase, hits, gocache.NoExpiration)
	return hits
}
