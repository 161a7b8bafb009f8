// Package msha downloads Mine Data Retrieval System datasets from the DOL
// open data API in offset-paged JSON chunks.
package msha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/fetcher"
	"github.com/sells-group/minesite-cli/internal/model"
)

const (
	// DefaultBaseURL is the DOL open data API root.
	DefaultBaseURL = "https://apiprod.dol.gov/v4"
	// DefaultCatalogURL lists every agency/endpoint pair the API serves.
	DefaultCatalogURL = "https://dol.gov/sites/dolgov/files/Data-Governance/Open%20Data%20Portal/agency-endpoint.csv"

	// LedgerSource tags MSHA rows in the download ledger.
	LedgerSource = "msha"

	format = "json"
)

// Fetcher is the HTTP surface the client needs. The API key travels as a
// default header on the fetcher.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Ledger records completed downloads. store.Store satisfies it.
type Ledger interface {
	RecordDownload(ctx context.Context, d model.Download) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	CatalogURL string
	Ledger     Ledger
}

// Client talks to the DOL open data API.
type Client struct {
	http       Fetcher
	baseURL    string
	catalogURL string
	ledger     Ledger
}

// NewClient creates a Client.
func NewClient(f Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.CatalogURL == "" {
		opts.CatalogURL = DefaultCatalogURL
	}
	return &Client{
		http:       f,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		catalogURL: opts.CatalogURL,
		ledger:     opts.Ledger,
	}
}

// Endpoint is one catalog row keyed by the catalog's column names.
type Endpoint map[string]string

// Name returns the endpoint column.
func (e Endpoint) Name() string {
	return e["endpoint"]
}

// Endpoints returns the published catalog, filtered by agency
// (case-insensitive) when agency is non-empty.
func (c *Client) Endpoints(ctx context.Context, agency string) ([]Endpoint, error) {
	body, err := c.http.Download(ctx, c.catalogURL)
	if err != nil {
		return nil, eris.Wrap(err, "msha: fetch catalog")
	}
	defer body.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var (
		header []string
		out    []Endpoint
	)
	for row := range rowCh {
		if header == nil {
			header = <-headerCh
		}
		e := make(Endpoint, len(header))
		for i, h := range header {
			if i < len(row) {
				e[h] = row[i]
			}
		}
		if agency != "" && !strings.EqualFold(e["agency"], agency) {
			continue
		}
		out = append(out, e)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "msha: parse catalog")
	}
	return out, nil
}

func (c *Client) endpointURL(agency, endpoint string, suffix string) string {
	return fmt.Sprintf("%s/get/%s/%s/%s%s", c.baseURL, url.PathEscape(agency), url.PathEscape(endpoint), format, suffix)
}

// Metadata returns the dataset metadata document for an endpoint.
func (c *Client) Metadata(ctx context.Context, agency, endpoint string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, c.endpointURL(agency, endpoint, "/metadata"), &raw); err != nil {
		return nil, eris.Wrapf(err, "msha: fetch metadata for %s/%s", agency, endpoint)
	}
	return raw, nil
}

// Page fetches one page of dataset records. The payload is returned as
// received.
func (c *Client) Page(ctx context.Context, agency, endpoint string, params url.Values) (json.RawMessage, error) {
	u := c.endpointURL(agency, endpoint, "")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, u, &raw); err != nil {
		return nil, eris.Wrapf(err, "msha: fetch page for %s/%s", agency, endpoint)
	}
	return raw, nil
}

// DatasetOptions controls DownloadDataset.
type DatasetOptions struct {
	Agency   string
	Endpoint string
	Dest     string
	// Limit caps the records fetched; 0 means all.
	Limit     int
	Offset    int
	ChunkSize int
	// Filter is sent as the filter_object parameter when non-empty.
	Filter      json.RawMessage
	ExtraParams map[string]string
	NoMetadata  bool
	Overwrite   bool
}

// chunkMetadata is the sidecar written next to each chunk. Fields are in
// key order.
type chunkMetadata struct {
	Agency              string         `json:"agency"`
	ChunkSize           int            `json:"chunk_size"`
	DatasetMetadataPath string         `json:"dataset_metadata_path,omitempty"`
	DownloadedAt        string         `json:"downloaded_at"`
	Endpoint            string         `json:"endpoint"`
	Format              string         `json:"format"`
	Offset              int            `json:"offset"`
	RecordCount         int            `json:"record_count"`
	RequestedParams     map[string]any `json:"requested_params"`
}

// DownloadDataset pages through an endpoint and writes each page to
// <dest>/<agency>/<endpoint>/<endpoint>_offset_<offset>.json. Paging stops
// on an empty page, a short page, or when Limit records have been fetched.
func (c *Client) DownloadDataset(ctx context.Context, opts DatasetOptions) ([]string, error) {
	if opts.ChunkSize <= 0 {
		return nil, eris.New("msha: chunk size must be positive")
	}
	log := zap.L().With(
		zap.String("component", "msha"),
		zap.String("agency", opts.Agency),
		zap.String("endpoint", opts.Endpoint),
	)

	dir := filepath.Join(opts.Dest, strings.ToLower(opts.Agency), opts.Endpoint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "msha: create %s", dir)
	}

	var datasetMetaName string
	if !opts.NoMetadata {
		meta, err := c.Metadata(ctx, opts.Agency, opts.Endpoint)
		if err != nil {
			return nil, err
		}
		datasetMetaName = opts.Endpoint + "_dataset_metadata.json"
		data, err := sortedIndent(meta)
		if err != nil {
			return nil, eris.Wrap(err, "msha: format dataset metadata")
		}
		if err := writeUnlessExists(filepath.Join(dir, datasetMetaName), data, opts.Overwrite); err != nil {
			return nil, err
		}
	}

	var saved []string
	total := 0
	for {
		current := opts.ChunkSize
		if opts.Limit > 0 {
			remaining := opts.Limit - total
			if remaining <= 0 {
				break
			}
			current = min(current, remaining)
		}
		chunkOffset := opts.Offset + total

		requested := map[string]any{"limit": current, "offset": chunkOffset}
		params := url.Values{}
		params.Set("limit", strconv.Itoa(current))
		params.Set("offset", strconv.Itoa(chunkOffset))
		if len(opts.Filter) > 0 {
			var compact bytes.Buffer
			if err := json.Compact(&compact, opts.Filter); err != nil {
				return saved, eris.Wrap(err, "msha: invalid filter object")
			}
			params.Set("filter_object", compact.String())
			requested["filter_object"] = compact.String()
		}
		for k, v := range opts.ExtraParams {
			params.Set(k, v)
			requested[k] = v
		}

		payload, err := c.Page(ctx, opts.Agency, opts.Endpoint, params)
		if err != nil {
			return saved, err
		}
		count, err := countRows(payload)
		if err != nil {
			return saved, eris.Wrapf(err, "msha: decode page at offset %d", chunkOffset)
		}
		if count == 0 {
			break
		}

		dataPath := filepath.Join(dir, ChunkFileName(opts.Endpoint, chunkOffset))
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload, "", "  "); err != nil {
			return saved, eris.Wrap(err, "msha: format page")
		}
		if err := writeUnlessExists(dataPath, pretty.Bytes(), opts.Overwrite); err != nil {
			return saved, err
		}
		saved = append(saved, dataPath)
		c.record(ctx, opts, chunkOffset, dataPath, int64(pretty.Len()))

		if !opts.NoMetadata {
			sidecar := chunkMetadata{
				Agency:              opts.Agency,
				ChunkSize:           current,
				DatasetMetadataPath: datasetMetaName,
				DownloadedAt:        time.Now().UTC().Format(time.RFC3339Nano),
				Endpoint:            opts.Endpoint,
				Format:              format,
				Offset:              chunkOffset,
				RecordCount:         count,
				RequestedParams:     requested,
			}
			data, err := json.MarshalIndent(sidecar, "", "  ")
			if err != nil {
				return saved, eris.Wrap(err, "msha: marshal chunk metadata")
			}
			if err := writeUnlessExists(dataPath+".metadata.json", data, opts.Overwrite); err != nil {
				return saved, err
			}
		}

		log.Debug("chunk saved", zap.Int("offset", chunkOffset), zap.Int("records", count))
		total += count
		if count < current {
			break
		}
	}

	log.Info("dataset downloaded", zap.Int("records", total), zap.Int("chunks", len(saved)))
	return saved, nil
}

// ChunkFileName returns the file name for the chunk starting at offset.
func ChunkFileName(endpoint string, offset int) string {
	return fmt.Sprintf("%s_offset_%09d.json", endpoint, offset)
}

func (c *Client) record(ctx context.Context, opts DatasetOptions, offset int, path string, n int64) {
	if c.ledger == nil {
		return
	}
	d := model.Download{
		Source:       LedgerSource,
		Key:          fmt.Sprintf("%s/%s:%d", strings.ToLower(opts.Agency), opts.Endpoint, offset),
		URL:          c.endpointURL(opts.Agency, opts.Endpoint, ""),
		Path:         path,
		Bytes:        n,
		DownloadedAt: time.Now().UTC(),
	}
	if err := c.ledger.RecordDownload(ctx, d); err != nil {
		zap.L().Warn("msha: failed to record download", zap.String("key", d.Key), zap.Error(err))
	}
}

// rowKeys are searched in order for the record list in a page object.
var (
	rowKeys    = []string{"data", "Data", "results", "Results", "items", "Items", "records", "Records"}
	resultKeys = []string{"records", "data", "Results"}
)

// countRows finds the record list in a page payload and returns its length.
func countRows(payload json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	if rows, ok := extractRows(v); ok {
		return len(rows), nil
	}
	return len(firstList(payload)), nil
}

// extractRows locates the record list: the payload itself when it is a
// list, a well-known key, or result.<key>.
func extractRows(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case map[string]any:
		for _, k := range rowKeys {
			if rows, ok := x[k].([]any); ok {
				return rows, true
			}
		}
		if result, ok := x["result"].(map[string]any); ok {
			for _, k := range resultKeys {
				if rows, ok := result[k].([]any); ok {
					return rows, true
				}
			}
		}
	}
	return nil, false
}

// firstList returns the first list-valued member of a JSON object in
// document order.
func firstList(payload json.RawMessage) []any {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil
		}
		if rows, ok := val.([]any); ok {
			return rows
		}
	}
	return nil
}

// sortedIndent re-encodes a JSON document with sorted object keys.
func sortedIndent(raw json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func writeUnlessExists(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "msha: write %s", filepath.Base(path))
	}
	return nil
}
