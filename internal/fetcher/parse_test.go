package fetcher

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	return rows
}

func TestStreamCSV_HeaderAndRows(t *testing.T) {
	input := "\ufeffname,lat,lon\nBingham Canyon,40.52,-112.15\nRed Dog,68.07,-162.87\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	rows := collectRows(t, rowCh, errCh)

	assert.Equal(t, []string{"name", "lat", "lon"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Bingham Canyon", "40.52", "-112.15"}, rows[0])
}

func TestStreamCSV_TabDelimitedTrim(t *testing.T) {
	input := "name\tlat\n  Red Dog \t 68.07\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
		HasHeader: true,
		TrimSpace: true,
	})
	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Red Dog", "68.07"}, rows[0])
}

func TestStreamCSV_VariableFieldsAndComments(t *testing.T) {
	input := "# survey export\na,b\nc\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Comment: '#'})
	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, rows)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,\"b\nc"), CSVOptions{})
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestDecodeJSONArray(t *testing.T) {
	type row struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
	}
	input := `[{"name":"Eagle","lat":46.7},{"name":"Kennecott","lat":40.5}]`

	itemCh, errCh := DecodeJSONArray[row](context.Background(), strings.NewReader(input))
	var items []row
	for item := range itemCh {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, items, 2)
	assert.Equal(t, "Kennecott", items[1].Name)
}

func TestDecodeJSONArray_NotArray(t *testing.T) {
	itemCh, errCh := DecodeJSONArray[map[string]any](context.Background(), strings.NewReader(`{"a":1}`))
	for range itemCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONObject(t *testing.T) {
	obj, err := DecodeJSONObject[map[string]string](strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	assert.Equal(t, "v", (*obj)["k"])

	_, err = DecodeJSONObject[map[string]string](strings.NewReader(`nope`))
	assert.Error(t, err)
}

func TestPeekJSONKind(t *testing.T) {
	kind, r, err := PeekJSONKind(strings.NewReader("  \n[1,2]"))
	require.NoError(t, err)
	assert.Equal(t, byte('['), kind)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "  \n[1,2]", string(data))

	_, _, err = PeekJSONKind(strings.NewReader("   "))
	assert.Error(t, err)
}

type testPlacemark struct {
	XMLName xml.Name `xml:"Placemark"`
	Name    string   `xml:"name"`
	Coords  string   `xml:"Point>coordinates"`
}

func TestStreamXML_NestedPlacemarks(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<kml><Document><Folder>
  <Placemark><name>Stillwater</name><Point><coordinates>-109.88,45.38,0</coordinates></Point></Placemark>
  <Placemark><name>Pebble</name><Point><coordinates>-155.29,59.9</coordinates></Point></Placemark>
</Folder></Document></kml>`

	itemCh, errCh := StreamXML[testPlacemark](context.Background(), strings.NewReader(input), XMLOptions{Element: "Placemark"})
	var items []testPlacemark
	for item := range itemCh {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, items, 2)
	assert.Equal(t, "Stillwater", items[0].Name)
	assert.Equal(t, "-155.29,59.9", items[1].Coords)
}

func TestStreamXML_Latin1(t *testing.T) {
	input := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><kml><Placemark><name>Pe\xf1asquito</name></Placemark></kml>"
	itemCh, errCh := StreamXML[testPlacemark](context.Background(), strings.NewReader(input), XMLOptions{Element: "Placemark"})
	var items []testPlacemark
	for item := range itemCh {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	require.Len(t, items, 1)
	assert.Equal(t, "Peñasquito", items[0].Name)
}

func TestStreamXML_LenientEntities(t *testing.T) {
	input := `<kml><Placemark><name>Cerro&nbsp;Verde<br></name></Placemark></kml>`

	itemCh, errCh := StreamXML[testPlacemark](context.Background(), strings.NewReader(input), XMLOptions{Element: "Placemark", Lenient: true})
	var items []testPlacemark
	for item := range itemCh {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	require.Len(t, items, 1)
	assert.Equal(t, "Cerro\u00a0Verde", items[0].Name)

	itemCh, errCh = StreamXML[testPlacemark](context.Background(), strings.NewReader(input), XMLOptions{Element: "Placemark"})
	for range itemCh {
	}
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "xml: decode Placemark")
}

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"mines/mines.shp": "shp",
		"mines/mines.dbf": "dbf",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 2)

	data, err := os.ReadFile(filepath.Join(destDir, "mines", "mines.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../evil.txt": "x"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}

func TestExtractZIP_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	assert.Error(t, err)
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Mines": {
			{"Name", "Latitude", "Longitude"},
			{"Carlin Trend", "40.9", "-116.3"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Carlin Trend", "40.9", "-116.3"}, rows[1])

	rows, err = ReadXLSX(path, XLSXOptions{SheetName: "Mines"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Nope"})
	assert.Error(t, err)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}

func TestReadXLSX_BadFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "missing.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
