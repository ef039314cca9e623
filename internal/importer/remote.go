package importer

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/resilience"
)

// Downloader fetches remote seed files over HTTP with retries.
type Downloader struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = c }
}

// WithRetry replaces the default retry policy.
func WithRetry(cfg resilience.RetryConfig) DownloaderOption {
	return func(d *Downloader) { d.retry = cfg }
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "investor-resolver/1.0",
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ReadSource reads a local path or an http(s) URL. Remote files are
// downloaded to a temporary file that is removed after reading.
func (d *Downloader) ReadSource(ctx context.Context, src string, opts Options) ([]model.Document, error) {
	if !IsRemote(src) {
		return ReadFile(ctx, src, opts)
	}
	p, err := d.Download(ctx, src)
	if err != nil {
		return nil, err
	}
	defer os.Remove(p) //nolint:errcheck
	return ReadFile(ctx, p, opts)
}

// Download saves rawURL to a temporary file named with the URL's extension
// and returns its path. 429 and 5xx responses are retried.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "importer: parse url")
	}
	ext := strings.ToLower(path.Ext(u.Path))

	cfg := d.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error) {
			zap.L().Warn("importer: download failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return d.fetch(ctx, rawURL, ext)
	})
}

func (d *Downloader) fetch(ctx context.Context, rawURL, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "importer: create request")
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", resilience.Transient(eris.Wrapf(err, "importer: get %s", rawURL))
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", resilience.Transient(eris.Errorf("importer: http %d from %s", resp.StatusCode, rawURL))
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("importer: http %d from %s", resp.StatusCode, rawURL)
	}

	f, err := os.CreateTemp("", "investor-import-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "importer: create temp file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", resilience.Transient(eris.Wrapf(err, "importer: read body of %s", rawURL))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", eris.Wrap(err, "importer: close temp file")
	}
	return f.Name(), nil
}
