package main

import (
	"context"
	"time"

	"github.com/sells-group/minesite-cli/internal/fetcher"
	"github.com/sells-group/minesite-cli/internal/store"
)

// initStore opens the configured ledger and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
	})
}

// initHTTP builds the shared rate-limited HTTP fetcher. Extra headers are
// sent on every request.
func initHTTP(userAgent string, headers map[string]string) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  userAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		Headers:    headers,
	})
}

// initSources lets gazetteers be read from http(s) and ftp URLs.
func initSources() *fetcher.Sources {
	return &fetcher.Sources{
		HTTP:    initHTTP(cfg.EDGAR.UserAgent, nil),
		FTP:     fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second}),
		TempDir: cfg.Fetch.TempDir,
	}
}
