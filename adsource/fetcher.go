package adsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wudi/pdfstamp/observability"
)

// Source returns the ad response published at url.
type Source interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// DefaultMaxBytes bounds a response body.
const DefaultMaxBytes = 4 << 20

// StatusError reports a non-2xx answer from the ad system.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch ads from %s: status %d", e.URL, e.StatusCode)
}

// Fetcher is a Source over HTTP GET. It makes exactly one attempt.
type Fetcher struct {
	client   *http.Client
	logger   observability.Logger
	maxBytes int64
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		c := *f.client
		c.Timeout = d
		f.client = &c
	}
}

func WithLogger(l observability.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBytes = n }
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   observability.NopLogger{},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	start := time.Now()
	resp, err := f.fetch(ctx, url)
	fields := []observability.Field{
		observability.String("metric", observability.MetricAdFetchDuration),
		observability.String("url", url),
		observability.Duration("duration", time.Since(start)),
	}
	if err != nil {
		f.logger.Error("ad fetch failed", append(fields, observability.Error("error", err))...)
		return nil, err
	}
	f.logger.Info("ads fetched", append(fields, observability.Int("locations", len(resp.Locations())))...)
	return resp, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ad request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ads from %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read ad response: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("ad response exceeds %d bytes", f.maxBytes)
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode ad response: %w", err)
	}
	return &out, nil
}
