// Package coords finds latitude/longitude pairs written literally in filing
// text.
package coords

import (
	"cmp"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sells-group/minesite-cli/internal/model"
)

// Numeric pieces shared by the patterns below.
const (
	deg      = `[°º˚]`
	minute   = `['′’]`
	second   = `(?:"|″|”|'')`
	sep      = `[\s,;/]*(?:and\s+)?`
	latNum   = `(\d{1,2}(?:\.\d+)?)`
	lonNum   = `(\d{1,3}(?:\.\d+)?)`
	dmsLat   = `(\d{1,2})\s*` + deg + `\s*(\d{1,2}(?:\.\d+)?)\s*` + minute + `\s*(?:(\d{1,2}(?:\.\d+)?)\s*` + second + `)?`
	latLabel = `lat(?:itude)?\.?\s*[:=]?\s*`
	lonLabel = `(?:lng|lon(?:g(?:itude)?)?)\.?\s*[:=]?\s*`
	dmsLon   = `(\d{1,3})\s*` + deg + `\s*(\d{1,2}(?:\.\d+)?)\s*` + minute + `\s*(?:(\d{1,2}(?:\.\d+)?)\s*` + second + `)?`
)

var (
	// 40°31'07"N 112°09'00"W
	dmsSuffixRe = regexp.MustCompile(`(?i)\b` + dmsLat + `\s*([NS])` + sep + dmsLon + `\s*([EW])`)
	// N 40°31'07" W 112°09'00"
	dmsPrefixRe = regexp.MustCompile(`(?i)\b([NS])\s*` + dmsLat + sep + `([EW])\s*` + dmsLon)
	// Latitude 40°31'07"N, Longitude 112°09'00"W / Latitude: 40° 31' 07" N Longitude: 112° 09' 00" W
	dmsLabeledRe = regexp.MustCompile(`(?i)\b` + latLabel + dmsLat + `\s*(?:([NS])(?:orth|outh)?\b)?` + sep + `\b` + lonLabel + dmsLon + `\s*(?:([EW])(?:ast|est)?\b)?`)
	// lat: 40.52, long: -112.15 / Latitude 40.52° N Longitude 112.15° W
	labeledRe = regexp.MustCompile(`(?i)\b` + latLabel + `([+-]?\d{1,2}(?:\.\d+)?)\s*` + deg + `?\s*(?:([NS])(?:orth|outh)?\b)?` +
		sep + `\b` + lonLabel + `([+-]?\d{1,3}(?:\.\d+)?)\s*` + deg + `?\s*(?:([EW])(?:ast|est)?\b)?`)
	// lat: 40.52, -112.15 / lat/long: 40.52, -112.15
	labeledPairRe = regexp.MustCompile(`(?i)\blat(?:itude)?(?:\s*/\s*(?:lng|lon(?:g(?:itude)?)?))?\.?\s*[:=]?\s*` +
		`([+-]?\d{1,2}\.\d+)\s*` + deg + `?\s*[,;]\s*([+-]?\d{1,3}\.\d+)\s*` + deg + `?`)
	// 40.5186 N, 112.1500 W
	hemisphereRe = regexp.MustCompile(`(?i)\b` + latNum + `\s*` + deg + `?\s*([NS])(?:orth|outh)?\b` + sep + lonNum + `\s*` + deg + `?\s*([EW])(?:ast|est)?\b`)
	// N 40.5, W 112.1
	hemispherePrefixRe = regexp.MustCompile(`(?i)\b([NS])\s*` + latNum + `\s*` + deg + `?` + sep + `\b([EW])\s*` + lonNum + `\s*` + deg + `?`)
	// 40.5186, -112.1500 or -33.4489 -70.6693, with at least two fractional
	// digits on each side. Whitespace alone separates the pair only when the
	// longitude carries a sign. Amounts ($40.52, 112.15) and percentages are
	// captured so they can be rejected.
	decimalRe = regexp.MustCompile(`(?:^|[^\w.+$-])([+-]?\d{1,2}\.\d{2,})` +
		`(?:\s*[,;]\s*([+-]?\d{1,3}\.\d{2,})|\s+([+-]\d{1,3}\.\d{2,}))\b(\s*%)?`)
)

// specificity ranks notations when matches start at the same offset.
var specificity = map[model.Notation]int{
	model.NotationDMS:              5,
	model.NotationLabeled:          4,
	model.NotationHemisphere:       3,
	model.NotationHemispherePrefix: 2,
	model.NotationDecimal:          1,
}

// pattern pairs a regexp with a parser for its submatches. parse returns
// false when the submatches do not form a coordinate.
type pattern struct {
	notation model.Notation
	re       *regexp.Regexp
	// group is the submatch whose start marks the coordinate span, 0 for the
	// whole match.
	group int
	parse func(g []string) (lat, lng float64, ok bool)
}

// Extractor scans text for coordinate pairs. It holds no per-call state and
// is safe for concurrent use.
type Extractor struct {
	patterns []pattern
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithoutBareDecimals disables unlabeled "lat, lng" decimal pairs, the
// notation most prone to false positives in financial tables.
func WithoutBareDecimals() Option {
	return func(e *Extractor) {
		e.patterns = slices.DeleteFunc(e.patterns, func(p pattern) bool {
			return p.notation == model.NotationDecimal
		})
	}
}

// New returns an Extractor recognizing every supported notation.
func New(opts ...Option) *Extractor {
	e := &Extractor{patterns: []pattern{
		{notation: model.NotationDMS, re: dmsSuffixRe, parse: parseDMSSuffix},
		{notation: model.NotationDMS, re: dmsPrefixRe, parse: parseDMSPrefix},
		{notation: model.NotationDMS, re: dmsLabeledRe, parse: parseDMSSuffix},
		{notation: model.NotationLabeled, re: labeledRe, parse: parseLabeled},
		{notation: model.NotationLabeled, re: labeledPairRe, parse: parseLabeledPair},
		{notation: model.NotationHemisphere, re: hemisphereRe, parse: parseHemisphere},
		{notation: model.NotationHemispherePrefix, re: hemispherePrefixRe, parse: parseHemispherePrefix},
		{notation: model.NotationDecimal, re: decimalRe, group: 1, parse: parseDecimal},
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New()

// Extract scans text with the default Extractor.
func Extract(text string) iter.Seq[model.ExtractedCoordinate] {
	return defaultExtractor.Extract(text)
}

// Extract returns the coordinates in text in document order. The scan runs
// each time the sequence is iterated. Out-of-range pairs are dropped;
// repeated coordinates are kept. Where matches overlap, the earliest start
// wins, then the more specific notation, then the longer span.
func (e *Extractor) Extract(text string) iter.Seq[model.ExtractedCoordinate] {
	return func(yield func(model.ExtractedCoordinate) bool) {
		for _, c := range e.scan(text) {
			if !yield(c) {
				return
			}
		}
	}
}

// All collects Extract into a slice.
func (e *Extractor) All(text string) []model.ExtractedCoordinate {
	return slices.Collect(e.Extract(text))
}

func (e *Extractor) scan(text string) []model.ExtractedCoordinate {
	var found []model.ExtractedCoordinate
	for _, p := range e.patterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = text[idx[2*i]:idx[2*i+1]]
				}
			}
			lat, lng, ok := p.parse(groups)
			if !ok || !model.ValidLatLng(lat, lng) {
				continue
			}
			start, end := idx[2*p.group], idx[1]
			found = append(found, model.ExtractedCoordinate{
				Latitude:  lat,
				Longitude: lng,
				Offset:    start,
				End:       end,
				Text:      strings.TrimSpace(text[start:end]),
				Notation:  p.notation,
			})
		}
	}

	slices.SortStableFunc(found, func(a, b model.ExtractedCoordinate) int {
		if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
			return c
		}
		if c := cmp.Compare(specificity[b.Notation], specificity[a.Notation]); c != 0 {
			return c
		}
		return cmp.Compare(b.End, a.End)
	})

	out := found[:0]
	lastEnd := -1
	for _, c := range found {
		if c.Offset < lastEnd {
			continue
		}
		out = append(out, c)
		lastEnd = c.End
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// dms converts degrees, minutes and optional seconds to decimal degrees.
func dms(d, m, s string) (float64, bool) {
	deg, ok := parseFloat(d)
	if !ok {
		return 0, false
	}
	mins, ok := parseFloat(m)
	if !ok || mins >= 60 {
		return 0, false
	}
	var secs float64
	if s != "" {
		if secs, ok = parseFloat(s); !ok || secs >= 60 {
			return 0, false
		}
	}
	return deg + mins/60 + secs/3600, true
}

// hemisphere applies a hemisphere letter, which overrides any sign.
func hemisphere(v float64, h string) float64 {
	switch strings.ToUpper(h) {
	case "S", "W":
		if v > 0 {
			return -v
		}
	case "N", "E":
		if v < 0 {
			return -v
		}
	}
	return v
}

func parseDMSSuffix(g []string) (float64, float64, bool) {
	lat, ok := dms(g[1], g[2], g[3])
	if !ok {
		return 0, 0, false
	}
	lng, ok := dms(g[5], g[6], g[7])
	if !ok {
		return 0, 0, false
	}
	return hemisphere(lat, g[4]), hemisphere(lng, g[8]), true
}

func parseDMSPrefix(g []string) (float64, float64, bool) {
	lat, ok := dms(g[2], g[3], g[4])
	if !ok {
		return 0, 0, false
	}
	lng, ok := dms(g[6], g[7], g[8])
	if !ok {
		return 0, 0, false
	}
	return hemisphere(lat, g[1]), hemisphere(lng, g[5]), true
}

func parseLabeled(g []string) (float64, float64, bool) {
	lat, ok := parseFloat(g[1])
	if !ok {
		return 0, 0, false
	}
	lng, ok := parseFloat(g[3])
	if !ok {
		return 0, 0, false
	}
	return hemisphere(lat, g[2]), hemisphere(lng, g[4]), true
}

func parseLabeledPair(g []string) (float64, float64, bool) {
	lat, ok := parseFloat(g[1])
	if !ok {
		return 0, 0, false
	}
	lng, ok := parseFloat(g[2])
	if !ok {
		return 0, 0, false
	}
	return lat, lng, true
}

func parseHemisphere(g []string) (float64, float64, bool) {
	lat, ok := parseFloat(g[1])
	if !ok {
		return 0, 0, false
	}
	lng, ok := parseFloat(g[3])
	if !ok {
		return 0, 0, false
	}
	return hemisphere(lat, g[2]), hemisphere(lng, g[4]), true
}

func parseHemispherePrefix(g []string) (float64, float64, bool) {
	lat, ok := parseFloat(g[2])
	if !ok {
		return 0, 0, false
	}
	lng, ok := parseFloat(g[4])
	if !ok {
		return 0, 0, false
	}
	return hemisphere(lat, g[1]), hemisphere(lng, g[3]), true
}

func parseDecimal(g []string) (float64, float64, bool) {
	if g[4] != "" {
		return 0, 0, false
	}
	lat, ok := parseFloat(g[1])
	if !ok {
		return 0, 0, false
	}
	lon := g[2]
	if lon == "" {
		lon = g[3]
	}
	lng, ok := parseFloat(lon)
	if !ok {
		return 0, 0, false
	}
	return lat, lng, true
}
