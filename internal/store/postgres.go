package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/minesite-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	edgar_root  TEXT NOT NULL,
	gazetteer   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sites (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	filing_id  TEXT NOT NULL,
	method     TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	location   BYTEA,
	site       JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS downloads (
	source        TEXT NOT NULL,
	key           TEXT NOT NULL,
	url           TEXT NOT NULL,
	path          TEXT NOT NULL,
	bytes         BIGINT NOT NULL DEFAULT 0,
	downloaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sites_method ON sites(method);
`

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateRun inserts a running run record.
func (s *PostgresStore) CreateRun(ctx context.Context, edgarRoot, gazetteer string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, edgar_root, gazetteer, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, edgarRoot, gazetteer, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, edgar_root, gazetteer, status, summary, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

// ListRuns returns runs, most recent first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, edgar_root, gazetteer, status, summary, started_at, finished_at FROM runs`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	args = append(args, listLimit(filter.Limit), max(filter.Offset, 0))
	if filter.Status != "" {
		query += ` ORDER BY started_at DESC LIMIT $2 OFFSET $3`
	} else {
		query += ` ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveSites replaces the sites stored for a run.
func (s *PostgresStore) SaveSites(ctx context.Context, runID string, sites []model.ResolvedSite) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save sites")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM sites WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "postgres: clear sites")
	}
	for i, site := range sites {
		body, loc, err := encodeSite(site)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO sites (run_id, seq, filing_id, method, confidence, location, site) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, i, site.FilingID, string(site.Method), site.Confidence, loc, body,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert site %s", site.FilingID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit sites")
}

// ListSites returns a run's sites in the order they were resolved.
func (s *PostgresStore) ListSites(ctx context.Context, runID string) ([]model.ResolvedSite, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT site, location FROM sites WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sites")
	}
	defer rows.Close()

	var sites []model.ResolvedSite
	for rows.Next() {
		var body, loc []byte
		if err := rows.Scan(&body, &loc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan site")
		}
		site, err := decodeSite(body, loc)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, eris.Wrap(rows.Err(), "postgres: list sites iterate")
}

// RecordDownload upserts a ledger row.
func (s *PostgresStore) RecordDownload(ctx context.Context, d model.Download) error {
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downloads (source, key, url, path, bytes, downloaded_at) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, key) DO UPDATE SET url = EXCLUDED.url, path = EXCLUDED.path,
			bytes = EXCLUDED.bytes, downloaded_at = EXCLUDED.downloaded_at`,
		d.Source, d.Key, d.URL, d.Path, d.Bytes, d.DownloadedAt,
	)
	return eris.Wrapf(err, "postgres: record download %s/%s", d.Source, d.Key)
}

// HasDownload reports whether a ledger row exists.
func (s *PostgresStore) HasDownload(ctx context.Context, source, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM downloads WHERE source = $1 AND key = $2)`, source, key,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: has download")
	}
	return exists, nil
}

// ListDownloads returns ledger rows for a source, newest first. An empty
// source lists all.
func (s *PostgresStore) ListDownloads(ctx context.Context, source string, limit int) ([]model.Download, error) {
	query := `SELECT source, key, url, path, bytes, downloaded_at FROM downloads`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1 ORDER BY downloaded_at DESC, key LIMIT $2`
		args = append(args, source, listLimit(limit))
	} else {
		query += ` ORDER BY downloaded_at DESC, key LIMIT $1`
		args = append(args, listLimit(limit))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list downloads")
	}
	defer rows.Close()

	var out []model.Download
	for rows.Next() {
		var d model.Download
		if err := rows.Scan(&d.Source, &d.Key, &d.URL, &d.Path, &d.Bytes, &d.DownloadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan download")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list downloads iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		r       model.Run
		status  string
		summary []byte
	)
	err := row.Scan(&r.ID, &r.EdgarRoot, &r.Gazetteer, &status, &summary, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.Status = model.RunStatus(status)
	r.Summary, err = decodeSummary(summary)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
