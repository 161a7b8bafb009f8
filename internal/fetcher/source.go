package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsRemote reports whether src is an http, https, or ftp URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return u.Host != ""
	}
	return false
}

// Sources turns source locations into local files, downloading remote ones
// into a scratch directory.
type Sources struct {
	HTTP    Fetcher
	FTP     Fetcher
	TempDir string
}

// Local returns a local path for src. Local paths are returned unchanged
// with a no-op cleanup; remote sources are downloaded and the cleanup removes
// the scratch copy. The file name of the URL path is preserved so callers can
// dispatch on its extension.
func (s *Sources) Local(ctx context.Context, src string) (string, func(), error) {
	noop := func() {}
	if !IsRemote(src) {
		return src, noop, nil
	}

	u, _ := url.Parse(src)
	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "ftp":
		f = s.FTP
	default:
		f = s.HTTP
	}
	if f == nil {
		return "", noop, eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", noop, eris.Errorf("fetcher: cannot infer file name from %s", src)
	}

	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create temp dir")
	}
	dir, err := os.MkdirTemp(s.TempDir, "source-")
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create scratch dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	local := filepath.Join(dir, name)
	n, err := f.DownloadToFile(ctx, src, local)
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "fetcher: download %s", src)
	}

	zap.L().Info("downloaded source",
		zap.String("component", "fetcher"),
		zap.String("url", src),
		zap.Int64("bytes", n),
	)
	return local, cleanup, nil
}
