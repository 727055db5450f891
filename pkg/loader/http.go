package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/slipwayhq/slipway/pkg/resilience"
)

// fetchToCache downloads url into the loader's cache directory, keyed by
// a content-addressed name derived from the URL itself, and returns the
// local path. A cache hit skips the network entirely. The download
// itself retries transient failures with exponential backoff, since a
// registry or HTTP reference fetch crosses the network §4.1 describes
// as a source the loader does not control.
func (l *Loader) fetchToCache(ctx context.Context, url string) (string, error) {
	sum := sha256.Sum256([]byte(url))
	cachePath := filepath.Join(l.cfg.CacheDir, hex.EncodeToString(sum[:])+".tar")

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	retryCfg := resilience.DefaultRetryConfig()
	err := resilience.Retry(ctx, retryCfg, func(attempt int) error {
		return l.download(ctx, url, cachePath)
	})
	if err != nil {
		return "", newLoadError(FileLoadFailed, url, err)
	}

	return cachePath, nil
}

func (l *Loader) download(ctx context.Context, url, cachePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		return err
	}

	tmp := cachePath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, cachePath)
}

func (l *Loader) httpClient() *http.Client {
	if l.cfg.HTTPClient != nil {
		return l.cfg.HTTPClient
	}
	return http.DefaultClient
}
