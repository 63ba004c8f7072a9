package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/NHYCRaymond/go-anime-crawler/monitoring"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; AnimeCrawler/1.0)"

// Fetcher downloads a page body
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher implements Fetcher for HTTP requests
type HTTPFetcher struct {
	client *resty.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(cfg config.FetchConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(20 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &HTTPFetcher{
		client: client,
		logger: logger,
	}
}

// Fetch returns the body of url. Transport failures, 429 and 5xx responses
// are recoverable fetch errors. Other 4xx responses yield an empty body so
// the stage treats the page as absent.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()

	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		monitoring.RecordFetch("error", time.Since(start))
		return "", errors.ErrFetchFailed.WithCause(fmt.Errorf("request %s: %w", url, err))
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		monitoring.RecordFetch("error", time.Since(start))
		return "", errors.ErrFetchFailed.WithMessage("unexpected status %d from %s", code, url)
	case code >= 400:
		monitoring.RecordFetch("client_error", time.Since(start))
		logging.EnrichLogger(ctx, f.logger).Warn("Page unavailable, treating as empty",
			"url", url,
			"status", code)
		return "", nil
	}

	monitoring.RecordFetch("success", time.Since(start))
	f.logger.Debug("Page fetched",
		"url", url,
		"status", code,
		"bytes", len(resp.Body()),
		"duration", resp.Time())
	return string(resp.Body()), nil
}
