package gazetteer

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/minesite-cli/internal/fetcher"
)

// table binds a header row to canonical fields.
type table struct {
	header []string
	bound  map[string]int
}

// newTable checks the header carries the required columns. Shapefiles take
// coordinates from geometry, so they only need a name column.
func newTable(path string, header []string, needCoords bool) (*table, error) {
	bound := bindFields(header)
	required := []string{fieldName}
	if needCoords {
		required = append(required, fieldLatitude, fieldLongitude)
	}
	for _, f := range required {
		if _, ok := bound[f]; !ok {
			return nil, &FormatError{Path: path, Field: f, Reason: "required column missing"}
		}
	}
	return &table{header: header, bound: bound}, nil
}

func (t *table) cell(cells []string, field string) string {
	i, ok := t.bound[field]
	if !ok || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// record maps a row onto a record. Coordinates stay raw strings so blank
// cells report as missing rather than zero.
func (t *table) record(cells []string) record {
	r := record{
		name:         t.cell(cells, fieldName),
		jurisdiction: t.cell(cells, fieldJurisdiction),
		source:       t.cell(cells, fieldSource),
	}
	if _, ok := t.bound[fieldLatitude]; ok {
		r.lat = t.cell(cells, fieldLatitude)
	}
	if _, ok := t.bound[fieldLongitude]; ok {
		r.lon = t.cell(cells, fieldLongitude)
	}
	if a := t.cell(cells, fieldAliases); a != "" {
		r.aliases = a
	}

	used := make(map[int]bool, len(t.bound))
	for _, i := range t.bound {
		used[i] = true
	}
	for i, h := range t.header {
		if used[i] || i >= len(cells) || cells[i] == "" || h == "" {
			continue
		}
		if r.metadata == nil {
			r.metadata = make(map[string]string)
		}
		r.metadata[headerKey(h)] = cells[i]
	}
	return r
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// loadDelimited streams a CSV or TSV file with a header row.
func loadDelimited(ctx context.Context, g *Gazetteer, path, display string, delim rune) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "gazetteer: open %s", display)
	}
	defer f.Close() //nolint:errcheck

	// Cancelling releases the reader goroutine if a row fails validation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Delimiter:  delim,
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	source := sourceName(display)
	var tbl *table
	row := 0
	for cells := range rowCh {
		if tbl == nil {
			if tbl, err = newTable(display, <-headerCh, true); err != nil {
				return err
			}
		}
		row++
		if blank(cells) {
			continue
		}
		e, err := tbl.record(cells).entry(display, row, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	for err := range errCh {
		if err != nil {
			return streamError(err, display, row+1)
		}
	}

	if tbl == nil {
		select {
		case header := <-headerCh:
			_, err := newTable(display, header, true)
			return err
		default:
			return &FormatError{Path: display, Reason: "missing header row"}
		}
	}
	return nil
}

// loadXLSX reads one worksheet whose first row is the header.
func loadXLSX(g *Gazetteer, path, display, sheet string) error {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	if err != nil {
		return &FormatError{Path: display, Reason: err.Error()}
	}
	if len(rows) == 0 {
		return &FormatError{Path: display, Reason: "missing header row"}
	}

	tbl, err := newTable(display, rows[0], true)
	if err != nil {
		return err
	}

	source := sourceName(display)
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		e, err := tbl.record(cells).entry(display, i+1, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	return nil
}
