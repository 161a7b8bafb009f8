package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/minesite-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	edgar_root  TEXT NOT NULL,
	gazetteer   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS sites (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	filing_id  TEXT NOT NULL,
	method     TEXT NOT NULL,
	confidence REAL NOT NULL,
	location   BLOB,
	site       TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS downloads (
	source        TEXT NOT NULL,
	key           TEXT NOT NULL,
	url           TEXT NOT NULL,
	path          TEXT NOT NULL,
	bytes         INTEGER NOT NULL DEFAULT 0,
	downloaded_at DATETIME NOT NULL,
	PRIMARY KEY (source, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_sites_method ON sites(method);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a running run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, edgarRoot, gazetteer string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, edgar_root, gazetteer, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, edgarRoot, gazetteer, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		EdgarRoot: edgarRoot,
		Gazetteer: gazetteer,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

// CompleteRun records the final status and summary of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// GetRun loads a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, edgar_root, gazetteer, status, summary, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

// ListRuns returns runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, edgar_root, gazetteer, status, summary, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveSites replaces the sites stored for a run.
func (s *SQLiteStore) SaveSites(ctx context.Context, runID string, sites []model.ResolvedSite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save sites")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE run_id = ?`, runID); err != nil {
		return eris.Wrap(err, "sqlite: clear sites")
	}
	for i, site := range sites {
		body, loc, err := encodeSite(site)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sites (run_id, seq, filing_id, method, confidence, location, site) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i, site.FilingID, string(site.Method), site.Confidence, loc, string(body),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert site %s", site.FilingID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit sites")
}

// ListSites returns a run's sites in the order they were resolved.
func (s *SQLiteStore) ListSites(ctx context.Context, runID string) ([]model.ResolvedSite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, location FROM sites WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sites")
	}
	defer rows.Close() //nolint:errcheck

	var sites []model.ResolvedSite
	for rows.Next() {
		var (
			body string
			loc  []byte
		)
		if err := rows.Scan(&body, &loc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site")
		}
		site, err := decodeSite([]byte(body), loc)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, eris.Wrap(rows.Err(), "sqlite: list sites iterate")
}

// RecordDownload upserts a ledger row.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d model.Download) error {
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (source, key, url, path, bytes, downloaded_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, key) DO UPDATE SET url = excluded.url, path = excluded.path,
			bytes = excluded.bytes, downloaded_at = excluded.downloaded_at`,
		d.Source, d.Key, d.URL, d.Path, d.Bytes, d.DownloadedAt,
	)
	return eris.Wrapf(err, "sqlite: record download %s/%s", d.Source, d.Key)
}

// HasDownload reports whether a ledger row exists.
func (s *SQLiteStore) HasDownload(ctx context.Context, source, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE source = ? AND key = ?`, source, key,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has download")
	}
	return n > 0, nil
}

// ListDownloads returns ledger rows for a source, newest first. An empty
// source lists all.
func (s *SQLiteStore) ListDownloads(ctx context.Context, source string, limit int) ([]model.Download, error) {
	query := `SELECT source, key, url, path, bytes, downloaded_at FROM downloads`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY downloaded_at DESC, key LIMIT ?`
	args = append(args, listLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list downloads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Download
	for rows.Next() {
		var d model.Download
		if err := rows.Scan(&d.Source, &d.Key, &d.URL, &d.Path, &d.Bytes, &d.DownloadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan download")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list downloads iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r        model.Run
		summary  sql.NullString
		finished sql.NullTime
	)
	err := row.Scan(&r.ID, &r.EdgarRoot, &r.Gazetteer, &r.Status, &summary, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	if summary.Valid {
		r.Summary, err = decodeSummary([]byte(summary.String))
		if err != nil {
			return nil, err
		}
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
