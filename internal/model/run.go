package model

import "time"

// RunStatus represents the lifecycle state of a site-resolution run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunSummary holds the per-method totals reported at the end of a run.
type RunSummary struct {
	Filings    int    `json:"filings"`
	Explicit   int    `json:"explicit"`
	FuzzyMatch int    `json:"fuzzy_match"`
	Unresolved int    `json:"unresolved"`
	GeoJSON    string `json:"geojson,omitempty"`
	HTMLMap    string `json:"html_map,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SummaryOf builds a RunSummary from a site collection.
func SummaryOf(c *SiteCollection) RunSummary {
	counts := c.Counts()
	return RunSummary{
		Filings:    c.Len(),
		Explicit:   counts[MethodExplicit],
		FuzzyMatch: counts[MethodFuzzyMatch],
		Unresolved: counts[MethodUnresolved],
	}
}

// Run is one invocation of the site-resolution pipeline.
type Run struct {
	ID         string      `json:"id"`
	EdgarRoot  string      `json:"edgar_root"`
	Gazetteer  string      `json:"gazetteer,omitempty"`
	Status     RunStatus   `json:"status"`
	Summary    *RunSummary `json:"summary,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Download is a ledger row for one file fetched by a download command.
type Download struct {
	Source       string    `json:"source"`
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	Path         string    `json:"path"`
	Bytes        int64     `json:"bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}
