package matcher

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/minesite-cli/internal/gazetteer"
)

// wordRe finds word tokens; an ampersand counts as a word so "Smith & Sons"
// stays one run.
var wordRe = regexp.MustCompile(`&|[\p{L}\p{N}][\p{L}\p{M}\p{N}'’-]*`)

// connectors may sit inside a run of capitalized words but never start or
// end a candidate phrase.
var connectors = map[string]bool{
	"of": true, "the": true, "and": true, "&": true, "y": true,
	"de": true, "del": true, "la": true, "las": true, "los": true, "el": true,
	"da": true, "do": true, "du": true, "des": true,
}

// Phrase is a candidate name found in text.
type Phrase struct {
	Text   string
	Key    string
	Offset int
}

type token struct {
	start, end int
	kind       tokenKind
}

type tokenKind int

const (
	tokenOther tokenKind = iota
	tokenCapital
	tokenNumber
	tokenConnector
)

func classify(word string) tokenKind {
	if connectors[strings.ToLower(word)] && !isAllUpper(word) {
		return tokenConnector
	}
	r, _ := utf8.DecodeRuneInString(word)
	switch {
	case unicode.IsUpper(r) || unicode.IsTitle(r):
		return tokenCapital
	case unicode.IsDigit(r):
		return tokenNumber
	default:
		return tokenOther
	}
}

func isAllUpper(word string) bool {
	return len(word) > 1 && strings.ToUpper(word) == word && strings.ToLower(word) != word
}

// Phrases returns every distinct candidate phrase of up to maxWindow words,
// in order of first appearance. A phrase is a window inside a run of
// capitalized words; it starts on a capitalized
// word and ends on a capitalized word or a number.
func Phrases(text string, maxWindow int) []Phrase {
	if maxWindow < 1 {
		maxWindow = 1
	}
	var out []Phrase
	seen := make(map[string]bool)
	for _, run := range runs(text) {
		for i := range run {
			if run[i].kind != tokenCapital {
				continue
			}
			for n := 1; n <= maxWindow && i+n <= len(run); n++ {
				last := run[i+n-1]
				if last.kind != tokenCapital && last.kind != tokenNumber {
					continue
				}
				raw := text[run[i].start:last.end]
				key := gazetteer.Normalize(raw)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Phrase{Text: raw, Key: key, Offset: run[i].start})
			}
		}
	}
	return out
}

// joins reports whether the gap between two tokens keeps them in one run.
// Whitespace, parentheses and slashes join; a period joins only after a short
// abbreviation such as "St" or "Mt", so sentence ends still split runs.
func joins(prev, gap string) bool {
	for _, r := range gap {
		switch {
		case unicode.IsSpace(r), r == '(', r == ')', r == '/':
		case r == '.' && utf8.RuneCountInString(prev) <= 3:
		default:
			return false
		}
	}
	return strings.Count(gap, ".") <= 1
}

// runs groups consecutive name tokens. A gap that does not join, or a
// lower-case word, ends the run.
func runs(text string) [][]token {
	var (
		out [][]token
		cur []token
	)
	flush := func() {
		// Trailing connectors and numbers never end up as phrase starts, so
		// only the leading edge needs trimming.
		for len(cur) > 0 && cur[0].kind != tokenCapital {
			cur = cur[1:]
		}
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}

	prevStart, prevEnd := -1, -1
	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		tok := token{start: loc[0], end: loc[1], kind: classify(text[loc[0]:loc[1]])}
		if prevEnd >= 0 && !joins(text[prevStart:prevEnd], text[prevEnd:tok.start]) {
			flush()
		}
		prevStart, prevEnd = tok.start, tok.end
		if tok.kind == tokenOther {
			flush()
			continue
		}
		cur = append(cur, tok)
	}
	flush()
	return out
}
