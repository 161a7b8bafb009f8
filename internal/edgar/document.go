// Package edgar searches SEC EDGAR full-text search for mining disclosures
// and downloads the matching exhibits with JSON metadata sidecars.
package edgar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var displayCIKRe = regexp.MustCompile(`\s+\(CIK \d{10}\)$`)

// Document is one file inside an EDGAR filing. Fields are declared in JSON
// key order so sidecars are written with sorted keys.
type Document struct {
	Adsh            string     `json:"adsh"`
	BizLocations    stringList `json:"biz_locations"`
	BizStates       stringList `json:"biz_states"`
	CIK             string     `json:"cik"`
	CIKs            stringList `json:"ciks"`
	CompanyNames    stringList `json:"company_names"`
	FileDate        string     `json:"file_date"`
	FileDescription string     `json:"file_description"`
	FileName        string     `json:"file_name"`
	FileNumbers     stringList `json:"file_numbers"`
	FileType        string     `json:"file_type"`
	FilmNumbers     stringList `json:"film_numbers"`
	Form            string     `json:"form"`
	IncStates       stringList `json:"inc_states"`
	Items           stringList `json:"items"`
	PeriodEnding    string     `json:"period_ending"`
	RootForms       stringList `json:"root_forms"`
	Score           *float64   `json:"score"`
	URL             string     `json:"url"`
}

// Key identifies the document in the download ledger.
func (d Document) Key() string {
	return d.Adsh + ":" + d.FileName
}

// RelPath returns the document's location below a download root:
// <cik>/<accession without dashes>/<file name>.
func (d Document) RelPath() string {
	return path.Join(d.CIK, strings.ReplaceAll(d.Adsh, "-", ""), path.Base(d.FileName))
}

// stringList decodes a JSON null, scalar, or array into a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = stringList{}
		return nil
	}
	var raw []any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		raw = []any{v}
	}
	out := make(stringList, 0, len(raw))
	for _, v := range raw {
		out = append(out, scalar(v))
	}
	*s = out
	return nil
}

// MarshalJSON writes an empty list instead of null.
func (s stringList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// hit is one full-text search result.
type hit struct {
	ID     string   `json:"_id"`
	Score  *float64 `json:"_score"`
	Source struct {
		Adsh            string     `json:"adsh"`
		CIKs            stringList `json:"ciks"`
		DisplayNames    stringList `json:"display_names"`
		Form            string     `json:"form"`
		RootForms       stringList `json:"root_forms"`
		FileType        string     `json:"file_type"`
		FileDescription string     `json:"file_description"`
		FileDate        string     `json:"file_date"`
		PeriodEnding    string     `json:"period_ending"`
		FileNum         stringList `json:"file_num"`
		FilmNum         stringList `json:"film_num"`
		Items           stringList `json:"items"`
		BizStates       stringList `json:"biz_states"`
		BizLocations    stringList `json:"biz_locations"`
		IncStates       stringList `json:"inc_states"`
	} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
}

// toDocument maps a search hit to a Document. The hit id is
// "<accession>:<file name>"; archive URLs use the CIK without zero padding.
func (h hit) toDocument(archivesURL string) Document {
	src := h.Source
	adsh, fileName := src.Adsh, h.ID
	if before, after, ok := strings.Cut(h.ID, ":"); ok {
		adsh, fileName = before, after
	}

	var primary string
	if len(src.CIKs) > 0 {
		primary = src.CIKs[0]
	}
	pathCIK := strings.TrimSpace(primary)
	if n, err := strconv.Atoi(pathCIK); err == nil {
		pathCIK = strconv.Itoa(n)
	}
	cik := primary
	if cik == "" {
		cik = pathCIK
	}

	names := make(stringList, 0, len(src.DisplayNames))
	for _, n := range src.DisplayNames {
		names = append(names, stripDisplayCIK(n))
	}

	return Document{
		Adsh:            adsh,
		FileName:        fileName,
		CIK:             cik,
		CIKs:            orEmpty(src.CIKs),
		CompanyNames:    names,
		Form:            src.Form,
		RootForms:       orEmpty(src.RootForms),
		FileType:        src.FileType,
		FileDescription: src.FileDescription,
		FileDate:        src.FileDate,
		PeriodEnding:    src.PeriodEnding,
		FileNumbers:     orEmpty(src.FileNum),
		FilmNumbers:     orEmpty(src.FilmNum),
		Items:           orEmpty(src.Items),
		BizStates:       orEmpty(src.BizStates),
		BizLocations:    orEmpty(src.BizLocations),
		IncStates:       orEmpty(src.IncStates),
		URL: fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(archivesURL, "/"),
			pathCIK, strings.ReplaceAll(adsh, "-", ""), fileName),
		Score: h.Score,
	}
}

// stripDisplayCIK removes the " (CIK 0000000000)" suffix from a display name.
func stripDisplayCIK(name string) string {
	return strings.TrimSpace(displayCIKRe.ReplaceAllString(name, ""))
}

func orEmpty(s stringList) stringList {
	if s == nil {
		return stringList{}
	}
	return s
}
