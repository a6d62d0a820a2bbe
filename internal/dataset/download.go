package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Downloader fetches remote dataset files.
type Downloader struct {
	rest *resty.Client
}

// NewDownloader builds a client that retries failed requests and 5xx responses.
func NewDownloader(timeout time.Duration, retries int) *Downloader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})
	return &Downloader{rest: r}
}

// Fetch returns the body of url.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("download %s: empty body", url)
	}
	return resp.Body(), nil
}

// FetchTo downloads url into path, creating parent directories.
func (d *Downloader) FetchTo(ctx context.Context, url, path string) error {
	body, err := d.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	log.Info().Str("url", url).Str("path", path).Int("bytes", len(body)).Msg("Dataset downloaded")
	return nil
}
