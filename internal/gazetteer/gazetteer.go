// Package gazetteer loads reference tables of named mine locations and keeps
// them in an ordered, normalized lookup used by the name matcher.
package gazetteer

import (
	"iter"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Entry is one named location. Entries are not modified after loading.
type Entry struct {
	Name         string            `json:"name" yaml:"name"`
	Latitude     float64           `json:"latitude" yaml:"latitude"`
	Longitude    float64           `json:"longitude" yaml:"longitude"`
	Aliases      []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Jurisdiction string            `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	Source       string            `json:"source,omitempty" yaml:"source,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Order is the entry's insertion index, used to break score ties.
	Order int `json:"-" yaml:"-"`
}

// nameNoise is everything but letters, digits, hyphens and whitespace.
var nameNoise = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s-]+`)

// Normalize returns the lookup key form of a name: NFKC, lower case,
// punctuation replaced by spaces, trimmed, with internal whitespace collapsed
// to single spaces. "St. Ives Mine" and "St Ives Mine" share a key.
func Normalize(s string) string {
	return fold(nameNoise.ReplaceAllString(norm.NFKC.String(s), " "))
}

// fold applies NFKC and lower case and collapses whitespace.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(s))), " ")
}

// Gazetteer maps normalized names to entries. Iteration follows insertion
// order; the first entry to claim a key keeps it.
type Gazetteer struct {
	entries []*Entry
	keys    []string
	index   map[string]*Entry
}

// New returns an empty gazetteer.
func New() *Gazetteer {
	return &Gazetteer{index: make(map[string]*Entry)}
}

// Add appends an entry and registers its name and aliases as keys. It
// returns the number of new keys; keys already claimed by an earlier entry
// are skipped.
func (g *Gazetteer) Add(e Entry) int {
	e.Order = len(g.entries)
	ptr := &e
	g.entries = append(g.entries, ptr)

	added := 0
	for _, name := range append([]string{e.Name}, e.Aliases...) {
		key := Normalize(name)
		if key == "" {
			continue
		}
		if _, taken := g.index[key]; taken {
			continue
		}
		g.index[key] = ptr
		g.keys = append(g.keys, key)
		added++
	}
	return added
}

// Len returns the number of keys, aliases included.
func (g *Gazetteer) Len() int {
	if g == nil {
		return 0
	}
	return len(g.keys)
}

// Empty reports whether the gazetteer has no keys.
func (g *Gazetteer) Empty() bool {
	return g.Len() == 0
}

// Keys returns the normalized keys in insertion order.
func (g *Gazetteer) Keys() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Entries returns a copy of every entry in insertion order.
func (g *Gazetteer) Entries() []Entry {
	if g == nil {
		return nil
	}
	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		out[i] = *e
	}
	return out
}

// Lookup finds the entry for a name, normalizing it first.
func (g *Gazetteer) Lookup(name string) (Entry, bool) {
	if g == nil {
		return Entry{}, false
	}
	e, ok := g.index[Normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// All yields every key with its entry in insertion order.
func (g *Gazetteer) All() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		if g == nil {
			return
		}
		for _, k := range g.keys {
			if !yield(k, *g.index[k]) {
				return
			}
		}
	}
}
