package model

// ResolutionMethod records how a site's coordinates were obtained.
type ResolutionMethod string

const (
	MethodExplicit   ResolutionMethod = "explicit"
	MethodFuzzyMatch ResolutionMethod = "fuzzy-match"
	MethodUnresolved ResolutionMethod = "unresolved"
)

// AllMethods returns every resolution method in reporting order.
func AllMethods() []ResolutionMethod {
	return []ResolutionMethod{MethodExplicit, MethodFuzzyMatch, MethodUnresolved}
}

// LatLng is a WGS 84 point in degrees.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ValidLatLng reports whether lat/lng lie within the WGS 84 degree ranges.
func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ResolvedSite is the single location record produced for each filing.
type ResolvedSite struct {
	FilingID     string           `json:"filing_id"`
	CIK          string           `json:"cik"`
	Accession    string           `json:"accession"`
	Company      string           `json:"company,omitempty"`
	Project      string           `json:"project,omitempty"`
	Form         string           `json:"form,omitempty"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	DocumentPath string           `json:"document_path,omitempty"`
	Location     *LatLng          `json:"location,omitempty"`
	Method       ResolutionMethod `json:"method"`
	Confidence   float64          `json:"confidence"`
	// MatchedName is the gazetteer name for fuzzy matches or the source text
	// for explicit coordinates.
	MatchedName string `json:"matched_name,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Located reports whether the site carries coordinates.
func (s ResolvedSite) Located() bool {
	return s.Method != MethodUnresolved && s.Location != nil
}

// SiteCollection is the ordered, append-only set of sites for one run.
type SiteCollection struct {
	sites []ResolvedSite
}

// Append adds a site to the end of the collection.
func (c *SiteCollection) Append(s ResolvedSite) {
	c.sites = append(c.sites, s)
}

// Len returns the number of sites.
func (c *SiteCollection) Len() int {
	return len(c.sites)
}

// Sites returns a copy of the sites in insertion order.
func (c *SiteCollection) Sites() []ResolvedSite {
	out := make([]ResolvedSite, len(c.sites))
	copy(out, c.sites)
	return out
}

// Located returns the sites that carry coordinates, in insertion order.
func (c *SiteCollection) Located() []ResolvedSite {
	var out []ResolvedSite
	for _, s := range c.sites {
		if s.Located() {
			out = append(out, s)
		}
	}
	return out
}

// Counts tallies sites per resolution method.
func (c *SiteCollection) Counts() map[ResolutionMethod]int {
	counts := make(map[ResolutionMethod]int, 3)
	for _, m := range AllMethods() {
		counts[m] = 0
	}
	for _, s := range c.sites {
		counts[s.Method]++
	}
	return counts
}
