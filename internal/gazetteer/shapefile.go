package gazetteer

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// loadShapefile reads a point shapefile. X/Y are taken as WGS 84
// longitude/latitude; projected coordinates fail the range check.
func loadShapefile(g *Gazetteer, path, display string) error {
	reader, err := shp.Open(path)
	if err != nil {
		return eris.Wrapf(err, "gazetteer: open shapefile %s", display)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.TrimRight(f.String(), "\x00")
	}

	tbl, err := newTable(display, header, false)
	if err != nil {
		return err
	}

	source := sourceName(display)
	row := 0
	for reader.Next() {
		idx, shape := reader.Shape()
		row = idx + 1

		var x, y float64
		switch s := shape.(type) {
		case *shp.Point:
			x, y = s.X, s.Y
		case *shp.PointZ:
			x, y = s.X, s.Y
		case *shp.PointM:
			x, y = s.X, s.Y
		case nil:
			return &FormatError{Path: display, Row: row, Field: "geometry", Reason: "missing geometry"}
		default:
			return &FormatError{Path: display, Row: row, Field: "geometry",
				Reason: fmt.Sprintf("non-point geometry %T", shape)}
		}

		cells := make([]string, len(fields))
		for i := range fields {
			cells[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		rec := tbl.record(cells)
		rec.lat, rec.lon = y, x

		e, err := rec.entry(display, row, source)
		if err != nil {
			return err
		}
		g.Add(e)
	}
	if err := reader.Err(); err != nil {
		return &FormatError{Path: display, Row: row + 1, Reason: err.Error()}
	}
	return nil
}
