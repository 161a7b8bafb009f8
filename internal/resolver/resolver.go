// Package resolver merges extracted coordinates and name matches into one
// site per filing.
package resolver

import (
	"github.com/sells-group/minesite-cli/internal/model"
)

// Resolve picks the location for a filing. The first extracted coordinate
// always wins, with confidence 1. Otherwise the best match candidate is used
// with its score as confidence; candidates are assumed ranked, so the first
// of equal scores is kept. With neither, the site is unresolved.
func Resolve(doc model.FilingDocument, coords []model.ExtractedCoordinate, candidates []model.MatchCandidate) model.ResolvedSite {
	site := model.ResolvedSite{
		FilingID:     doc.ID(),
		CIK:          doc.CIK,
		Accession:    doc.Accession,
		Company:      doc.Company,
		Project:      doc.Project,
		Form:         doc.Form,
		Jurisdiction: doc.Jurisdiction,
		DocumentPath: doc.DocumentPath,
		Method:       model.MethodUnresolved,
	}

	if len(coords) > 0 {
		c := coords[0]
		site.Location = &model.LatLng{Latitude: c.Latitude, Longitude: c.Longitude}
		site.Method = model.MethodExplicit
		site.Confidence = 1
		site.MatchedName = c.Text
		site.Source = "text:" + string(c.Notation)
		return site
	}

	if best, ok := bestCandidate(candidates); ok {
		site.Location = &model.LatLng{Latitude: best.Latitude, Longitude: best.Longitude}
		site.Method = model.MethodFuzzyMatch
		site.Confidence = best.Score
		site.MatchedName = best.Name
		site.Source = best.Source
		if site.Jurisdiction == "" {
			site.Jurisdiction = best.Jurisdiction
		}
	}
	return site
}

func bestCandidate(candidates []model.MatchCandidate) (model.MatchCandidate, bool) {
	if len(candidates) == 0 {
		return model.MatchCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
