package edgar

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/minesite-cli/internal/model"
)

const (
	// DefaultSearchURL is the EDGAR full-text search endpoint.
	DefaultSearchURL = "https://efts.sec.gov/LATEST/search-index"
	// DefaultArchivesURL is the root of EDGAR filing archives.
	DefaultArchivesURL = "https://www.sec.gov/Archives/edgar/data"

	// pageSize is the number of hits the search endpoint returns per page.
	pageSize = 100

	// LedgerSource tags EDGAR rows in the download ledger.
	LedgerSource = "edgar"
)

// Fetcher is the HTTP surface the client needs.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Ledger records completed downloads. store.Store satisfies it.
type Ledger interface {
	RecordDownload(ctx context.Context, d model.Download) error
}

// Client talks to EDGAR full-text search and the filing archives.
type Client struct {
	http        Fetcher
	ledger      Ledger
	searchURL   string
	archivesURL string
	concurrency int
}

// Options configures a Client.
type Options struct {
	SearchURL   string
	ArchivesURL string
	// Concurrency bounds parallel document downloads. Defaults to 4.
	Concurrency int
	// Ledger is optional.
	Ledger Ledger
}

// NewClient creates a Client.
func NewClient(f Fetcher, opts Options) *Client {
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.ArchivesURL == "" {
		opts.ArchivesURL = DefaultArchivesURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Client{
		http:        f,
		ledger:      opts.Ledger,
		searchURL:   opts.SearchURL,
		archivesURL: opts.ArchivesURL,
		concurrency: opts.Concurrency,
	}
}

// SearchOptions narrows a full-text search.
type SearchOptions struct {
	Query string
	// Limit is the maximum number of documents returned. Defaults to 10.
	Limit int
	Forms []string
	// DescriptionFilter is a case-insensitive substring required in the
	// file description, file type, or file extension.
	DescriptionFilter string
	Start             int
	DateRange         string
}

// Search pages through full-text search results until Limit documents pass
// the filters or the results run out.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Document, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.DateRange == "" {
		opts.DateRange = "all"
	}
	filter := strings.ToLower(opts.DescriptionFilter)
	log := zap.L().With(zap.String("component", "edgar"), zap.String("query", opts.Query))

	var results []Document
	offset := max(opts.Start, 0)
	for len(results) < opts.Limit {
		var resp searchResponse
		if err := c.http.GetJSON(ctx, c.searchPageURL(opts, offset), &resp); err != nil {
			return results, eris.Wrapf(err, "edgar: search page at offset %d", offset)
		}
		hits := resp.Hits.Hits
		if len(hits) == 0 {
			break
		}
		log.Debug("search page", zap.Int("offset", offset), zap.Int("hits", len(hits)))

		for _, h := range hits {
			doc := h.toDocument(c.archivesURL)
			if filter != "" && !strings.Contains(descriptionHaystack(doc), filter) {
				continue
			}
			results = append(results, doc)
			if len(results) >= opts.Limit {
				break
			}
		}

		offset += len(hits)
		if len(hits) < pageSize {
			break
		}
	}

	log.Info("search complete", zap.Int("documents", len(results)))
	return results, nil
}

func (c *Client) searchPageURL(opts SearchOptions, offset int) string {
	q := url.Values{}
	q.Set("q", opts.Query)
	q.Set("dateRange", opts.DateRange)
	q.Set("category", "custom")
	q.Set("from", strconv.Itoa(offset))
	if forms := normalizeForms(opts.Forms); forms != "" {
		q.Set("forms", forms)
	}
	return c.searchURL + "?" + q.Encode()
}

// normalizeForms upper-cases, dedupes, and sorts form types.
func normalizeForms(forms []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range forms {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func descriptionHaystack(d Document) string {
	var parts []string
	for _, p := range []string{d.FileDescription, d.FileType, filepath.Ext(d.FileName)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// DownloadOptions controls how documents are written.
type DownloadOptions struct {
	Dest string
	// NoMetadata skips the .metadata.json sidecar.
	NoMetadata bool
	// Overwrite re-downloads files that already exist.
	Overwrite bool
}

// Download saves one document under opts.Dest and returns its path.
// Existing files are kept unless Overwrite is set; the sidecar is always
// rewritten unless NoMetadata is set.
func (c *Client) Download(ctx context.Context, doc Document, opts DownloadOptions) (string, error) {
	target := filepath.Join(opts.Dest, filepath.FromSlash(doc.RelPath()))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", eris.Wrapf(err, "edgar: create directory for %s", doc.Key())
	}

	_, statErr := os.Stat(target)
	if opts.Overwrite || os.IsNotExist(statErr) {
		n, err := c.fetch(ctx, doc.URL, target)
		if err != nil {
			return "", eris.Wrapf(err, "edgar: download %s", doc.Key())
		}
		if c.ledger != nil {
			rec := model.Download{
				Source:       LedgerSource,
				Key:          doc.Key(),
				URL:          doc.URL,
				Path:         target,
				Bytes:        n,
				DownloadedAt: time.Now().UTC(),
			}
			if err := c.ledger.RecordDownload(ctx, rec); err != nil {
				zap.L().Warn("edgar: failed to record download", zap.String("key", doc.Key()), zap.Error(err))
			}
		}
	}

	if !opts.NoMetadata {
		if err := WriteMetadata(target, doc); err != nil {
			return "", err
		}
	}
	return target, nil
}

func (c *Client) fetch(ctx context.Context, rawURL, target string) (int64, error) {
	body, err := c.http.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, eris.Wrap(err, "write file")
	}
	if err := os.Rename(tmp, target); err != nil {
		return n, eris.Wrap(err, "rename file")
	}
	return n, nil
}

// WriteMetadata writes the sidecar for the document saved at target.
func WriteMetadata(target string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "edgar: marshal metadata")
	}
	if err := os.WriteFile(target+".metadata.json", data, 0o644); err != nil {
		return eris.Wrapf(err, "edgar: write metadata for %s", doc.Key())
	}
	return nil
}

// DownloadAll downloads documents in parallel. The returned paths line up
// with docs; the first failure cancels the rest.
func (c *Client) DownloadAll(ctx context.Context, docs []Document, opts DownloadOptions) ([]string, error) {
	paths := make([]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			p, err := c.Download(gctx, doc, opts)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return paths, err
	}
	zap.L().Info("edgar: downloads complete",
		zap.String("component", "edgar"),
		zap.Int("documents", len(docs)),
		zap.String("dest", opts.Dest),
	)
	return paths, nil
}
