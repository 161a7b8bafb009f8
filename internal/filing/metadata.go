package filing

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MetadataSuffix names the sidecar written next to each downloaded exhibit.
const MetadataSuffix = ".metadata.json"

// Metadata is the subset of an EDGAR sidecar used to describe a filing.
type Metadata struct {
	Adsh            string   `json:"adsh"`
	FileName        string   `json:"file_name"`
	CIK             string   `json:"cik"`
	CIKs            []string `json:"ciks"`
	CompanyNames    []string `json:"company_names"`
	Form            string   `json:"form"`
	FileType        string   `json:"file_type"`
	FileDescription string   `json:"file_description"`
	BizLocations    []string `json:"biz_locations"`
	IncStates       []string `json:"inc_states"`
}

var (
	projectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b((?:[A-Z][A-Za-z0-9'-]*\s+){1,5}Project)\b`),
		regexp.MustCompile(`\b((?:[A-Z][A-Za-z0-9'-]*\s+){1,5}Mine)\b`),
		regexp.MustCompile(`\b((?:[A-Z][A-Za-z0-9'-]*\s+){1,5}Property)\b`),
	}
	depositPattern      = regexp.MustCompile(`\b((?:[A-Z][A-Za-z0-9'-]*\s+){1,5}Deposit)\b`)
	jurisdictionPattern = regexp.MustCompile(`\b(?:State|Department|Province|Region) of ([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)`)
)

// Company returns the first display name, falling back to the CIK.
func (m Metadata) Company() string {
	for _, name := range m.CompanyNames {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return m.PrimaryCIK()
}

// PrimaryCIK returns the sidecar CIK or the first of its CIK list.
func (m Metadata) PrimaryCIK() string {
	if m.CIK != "" {
		return m.CIK
	}
	if len(m.CIKs) > 0 {
		return m.CIKs[0]
	}
	return ""
}

// InferProject names the project a filing describes: the first
// "... Project", "... Mine" or "... Property" phrase, then "... Deposit" for
// technical report exhibits, then the document file name without extension.
func InferProject(m Metadata, text string) string {
	for _, re := range projectPatterns {
		if g := re.FindStringSubmatch(text); g != nil {
			return strings.TrimSpace(g[1])
		}
	}

	desc := strings.ToUpper(m.FileDescription + " " + m.FileType)
	if strings.Contains(desc, "EX") || strings.Contains(desc, "TRS") || strings.Contains(desc, "TECHNICAL") {
		if g := depositPattern.FindStringSubmatch(text); g != nil {
			return strings.TrimSpace(g[1])
		}
	}

	name := m.FileName
	if name == "" {
		name = m.FileDescription
	}
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// InferJurisdiction prefers the sidecar's incorporation state or business
// location, then a "State of X" style phrase in the text.
func InferJurisdiction(m Metadata, text string) string {
	for _, list := range [][]string{m.IncStates, m.BizLocations} {
		if len(list) > 0 && strings.TrimSpace(list[0]) != "" {
			return strings.TrimSpace(list[0])
		}
	}
	if g := jurisdictionPattern.FindStringSubmatch(text); g != nil {
		return strings.TrimSpace(g[1])
	}
	return ""
}
