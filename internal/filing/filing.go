// Package filing reads downloaded EDGAR exhibits and their metadata sidecars
// into filing documents.
package filing

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/model"
)

// ErrStop ends a Walk early without error.
var ErrStop = eris.New("filing: stop walk")

// MetadataPaths returns every sidecar under root in lexical order.
func MetadataPaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "filing: stat %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("filing: %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), MetadataSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "filing: walk %s", root)
	}
	slices.Sort(paths)
	return paths, nil
}

// Read loads the exhibit described by a sidecar. The document path is the
// sidecar path without its suffix.
func Read(metadataPath string) (model.FilingDocument, error) {
	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return model.FilingDocument{}, eris.Wrapf(err, "filing: read metadata %s", metadataPath)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.FilingDocument{}, eris.Wrapf(err, "filing: decode metadata %s", metadataPath)
	}

	docPath := strings.TrimSuffix(metadataPath, MetadataSuffix)
	f, err := os.Open(docPath)
	if err != nil {
		return model.FilingDocument{}, eris.Wrapf(err, "filing: open document %s", docPath)
	}
	defer f.Close() //nolint:errcheck

	text, err := ExtractText(f)
	if err != nil {
		return model.FilingDocument{}, eris.Wrapf(err, "filing: extract text %s", docPath)
	}

	// Layout is <root>/<cik>/<accession without dashes>/<file>.
	accDir := filepath.Dir(docPath)
	cik := meta.PrimaryCIK()
	if cik == "" {
		cik = filepath.Base(filepath.Dir(accDir))
	}
	accession := meta.Adsh
	if accession == "" {
		accession = filepath.Base(accDir)
	}
	if meta.FileName == "" {
		meta.FileName = filepath.Base(docPath)
	}
	company := meta.Company()
	if company == "" {
		company = cik
	}

	return model.FilingDocument{
		CIK:          cik,
		Accession:    accession,
		FileName:     filepath.Base(docPath),
		Form:         meta.Form,
		Company:      company,
		Project:      InferProject(meta, text),
		Jurisdiction: InferJurisdiction(meta, text),
		DocumentPath: docPath,
		MetadataPath: metadataPath,
		Text:         text,
	}, nil
}

// Walk reads filings under root in sidecar order and passes each to fn.
// Unreadable sidecars or documents are logged and skipped. A positive limit
// caps the number of filings passed to fn. Walk returns how many were passed;
// fn may return ErrStop to end early.
func Walk(ctx context.Context, root string, limit int, fn func(model.FilingDocument) error) (int, error) {
	log := zap.L().With(zap.String("component", "filing"))

	paths, err := MetadataPaths(root)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, p := range paths {
		if limit > 0 && n >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return n, eris.Wrap(err, "filing: walk cancelled")
		}

		doc, err := Read(p)
		if err != nil {
			log.Warn("skipping filing", zap.String("metadata", p), zap.Error(err))
			continue
		}

		n++
		if err := fn(doc); err != nil {
			if eris.Is(err, ErrStop) {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}
