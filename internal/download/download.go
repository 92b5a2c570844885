// Package download fetches source media over HTTP with bounded retries and
// exponential backoff.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dubflow/internal/services"
)

const (
	defaultRetries      = 3
	defaultTimeout      = 60 * time.Second
	defaultBackoffBase  = 500 * time.Millisecond
	defaultBackoffLimit = 10 * time.Second
)

// Options bound how persistently a download is attempted. Retries counts
// additional attempts after the first, so Retries=3 means up to 4 requests.
type Options struct {
	Retries      int
	Timeout      time.Duration
	BackoffBase  time.Duration
	BackoffLimit time.Duration
}

func (o Options) normalized() Options {
	if o.Retries < 0 {
		o.Retries = defaultRetries
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = defaultBackoffBase
	}
	if o.BackoffLimit < o.BackoffBase {
		o.BackoffLimit = defaultBackoffLimit
	}
	return o
}

// Downloader retrieves URLs to local files.
type Downloader struct {
	opts    Options
	client  *http.Client
	sleeper func(time.Duration)
}

// Option customizes the downloader.
type Option func(*Downloader)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(d *Downloader) {
		if sleeper != nil {
			d.sleeper = sleeper
		}
	}
}

// New constructs a downloader with the supplied retry policy.
func New(opts Options, options ...Option) *Downloader {
	opts = opts.normalized()
	d := &Downloader{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		sleeper: time.Sleep,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Fetch downloads url into dst, creating parent directories. Transient
// failures (network errors, HTTP 5xx, 429) are retried with exponential
// backoff; other HTTP errors fail immediately. After the final attempt the
// returned error wraps services.ErrProvider and names the attempt count and
// timeout for diagnostics.
func (d *Downloader) Fetch(ctx context.Context, url, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	attempts := d.opts.Retries + 1
	delay := d.opts.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = d.fetchOnce(ctx, url, dst)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.sleeper(delay)
		if next := delay * 2; next <= d.opts.BackoffLimit {
			delay = next
		}
	}

	return services.Wrap(services.ErrProvider, "", "download",
		fmt.Sprintf("exhausted %d attempts (timeout %s)", attempts, d.opts.Timeout), lastErr)
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.status)
}

func retryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests
	}
	// Network-level failures are always worth another attempt.
	return true
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: %w", url, &httpStatusError{status: resp.StatusCode})
	}

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", dst, err)
	}
	return nil
}
