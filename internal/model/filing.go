package model

// FilingDocument is a single downloaded disclosure ready for site resolution.
type FilingDocument struct {
	CIK          string `json:"cik"`
	Accession    string `json:"accession"`
	FileName     string `json:"file_name"`
	Form         string `json:"form,omitempty"`
	Company      string `json:"company,omitempty"`
	Project      string `json:"project,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	DocumentPath string `json:"document_path"`
	MetadataPath string `json:"metadata_path,omitempty"`
	Text         string `json:"-"`
}

// ID returns the filing identifier: CIK and accession number, plus the file
// name when an accession carries several exhibits.
func (d FilingDocument) ID() string {
	id := d.CIK + ":" + d.Accession
	if d.FileName != "" {
		id += ":" + d.FileName
	}
	return id
}

// Notation names the textual form a coordinate was written in.
type Notation string

const (
	NotationHemisphere       Notation = "hemisphere"
	NotationHemispherePrefix Notation = "hemisphere_prefix"
	NotationLabeled          Notation = "labeled"
	NotationDMS              Notation = "dms"
	NotationDecimal          Notation = "decimal"
)

// ExtractedCoordinate is a latitude/longitude pair found literally in text.
// Offset and End are byte offsets of the matched span.
type ExtractedCoordinate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Offset    int      `json:"offset"`
	End       int      `json:"end"`
	Text      string   `json:"text"`
	Notation  Notation `json:"notation"`
}

// MatchCandidate is a gazetteer entry whose name resembles a phrase in a
// filing.
type MatchCandidate struct {
	Name         string  `json:"name"`
	Key          string  `json:"key"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Jurisdiction string  `json:"jurisdiction,omitempty"`
	Source       string  `json:"source,omitempty"`
	Phrase       string  `json:"phrase"`
	Offset       int     `json:"offset"`
	Score        float64 `json:"score"`
	// Order is the gazetteer insertion index of the entry.
	Order int `json:"order"`
}
