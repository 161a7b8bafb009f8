package gazetteer

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Canonical field names.
const (
	fieldName         = "name"
	fieldLatitude     = "latitude"
	fieldLongitude    = "longitude"
	fieldAliases      = "aliases"
	fieldJurisdiction = "jurisdiction"
	fieldSource       = "source"
)

// headerAliases maps accepted column spellings to canonical fields. Exact
// canonical names take precedence over the alternates.
var headerAliases = map[string]string{
	"title": fieldName,
	"lat":   fieldLatitude,
	"lon":   fieldLongitude,
	"lng":   fieldLongitude,
	"long":  fieldLongitude,
	"alias": fieldAliases,
}

var aliasSplit = regexp.MustCompile(`[;|,]`)

// headerKey normalizes a column or property name for binding.
func headerKey(h string) string {
	return strings.ReplaceAll(fold(h), " ", "_")
}

// bindFields resolves header names to canonical fields. The returned map
// holds canonical field → header index; unbound indexes are metadata.
func bindFields(header []string) map[string]int {
	bound := make(map[string]int)
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}
	for i, k := range keys {
		switch k {
		case fieldName, fieldLatitude, fieldLongitude, fieldAliases, fieldJurisdiction, fieldSource:
			if _, ok := bound[k]; !ok {
				bound[k] = i
			}
		}
	}
	for i, k := range keys {
		if canon, ok := headerAliases[k]; ok {
			if _, taken := bound[canon]; !taken {
				bound[canon] = i
			}
		}
	}
	return bound
}

// record is one raw gazetteer row before validation.
type record struct {
	name         string
	lat, lon     any
	aliases      any
	jurisdiction string
	source       string
	metadata     map[string]string
}

// recordFromObject maps an object's properties onto a record. Nested values
// other than alias lists are flattened with fmt into metadata.
func recordFromObject(obj map[string]any) record {
	// Bind in sorted key order so duplicate spellings resolve the same way every run.
	keys := slices.Sorted(maps.Keys(obj))
	bound := bindFields(keys)

	var r record
	used := make(map[int]bool, len(bound))
	for canon, i := range bound {
		used[i] = true
		v := obj[keys[i]]
		switch canon {
		case fieldName:
			r.name = scalarString(v)
		case fieldLatitude:
			r.lat = v
		case fieldLongitude:
			r.lon = v
		case fieldAliases:
			r.aliases = v
		case fieldJurisdiction:
			r.jurisdiction = scalarString(v)
		case fieldSource:
			r.source = scalarString(v)
		}
	}
	for i, k := range keys {
		if used[i] {
			continue
		}
		if s := scalarString(obj[k]); s != "" {
			if r.metadata == nil {
				r.metadata = make(map[string]string)
			}
			r.metadata[k] = s
		}
	}
	return r
}

// entry validates the record and converts it to an Entry.
func (r record) entry(path string, row int, defaultSource string) (Entry, error) {
	name := strings.TrimSpace(r.name)
	if name == "" {
		return Entry{}, &FormatError{Path: path, Row: row, Field: fieldName, Reason: "empty name"}
	}

	lat, err := parseCoordinate(r.lat)
	if err != nil {
		return Entry{}, &FormatError{Path: path, Row: row, Field: fieldLatitude, Reason: err.Error()}
	}
	lon, err := parseCoordinate(r.lon)
	if err != nil {
		return Entry{}, &FormatError{Path: path, Row: row, Field: fieldLongitude, Reason: err.Error()}
	}
	if lat < -90 || lat > 90 {
		return Entry{}, &FormatError{Path: path, Row: row, Field: fieldLatitude,
			Reason: fmt.Sprintf("%v out of range [-90,90]", lat)}
	}
	if lon < -180 || lon > 180 {
		return Entry{}, &FormatError{Path: path, Row: row, Field: fieldLongitude,
			Reason: fmt.Sprintf("%v out of range [-180,180]", lon)}
	}

	source := strings.TrimSpace(r.source)
	if source == "" {
		source = defaultSource
	}

	return Entry{
		Name:         name,
		Latitude:     lat,
		Longitude:    lon,
		Aliases:      splitAliases(r.aliases),
		Jurisdiction: strings.TrimSpace(r.jurisdiction),
		Source:       source,
		Metadata:     r.metadata,
	}, nil
}

// parseCoordinate accepts numbers and numeric strings.
func parseCoordinate(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, eris.New("missing value")
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, eris.New("missing value")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Errorf("unparseable number %q", x)
		}
		f = parsed
	default:
		return 0, eris.Errorf("unparseable number %v", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("unparseable number %v", v)
	}
	return f, nil
}

// splitAliases accepts a delimited string or a list.
func splitAliases(v any) []string {
	var parts []string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		parts = aliasSplit.Split(x, -1)
	case []string:
		parts = x
	case []any:
		for _, item := range x {
			parts = append(parts, scalarString(item))
		}
	default:
		parts = []string{scalarString(x)}
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
