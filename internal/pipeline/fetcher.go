package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ppiankov/rehost/internal/cache"
	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/util"
	"github.com/ppiankov/rehost/internal/worker"
)

const (
	maxFetchAttempts = 3
	fetchBaseBackoff = 500 * time.Millisecond

	defaultMaxBodyBytes = 10_000_000

	acceptOPDS = "application/atom+xml;profile=opds-catalog, application/atom+xml;q=0.9, application/xml;q=0.8, */*;q=0.1"
)

var (
	// ErrUnexpectedStatus is wrapped by every StatusError
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrDisallowedByRobots is returned when robots.txt forbids the URL
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrBodyTooLarge is returned when a response exceeds the size limit
	ErrBodyTooLarge = errors.New("response body too large")
)

// fetchSleepFunc is replaced in tests to skip backoff delays
var fetchSleepFunc = time.Sleep

// StatusError reports a response with a status the caller cannot use
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// FetchResult is a fetched representation and its metadata
type FetchResult struct {
	Body      []byte
	Meta      model.FetchMeta
	FinalURL  string
	FetchedAt time.Time
}

// Fetcher retrieves OPDS documents over HTTP
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	robots  *util.RobotsChecker
	limiter *worker.Limiter
	reps    *cache.Representations
	repTTL  time.Duration
}

// NewFetcher creates a Fetcher from the HTTP settings. The limiter and the
// representation cache are optional.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, reps *cache.Representations, repTTL time.Duration) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    limiter,
		reps:       reps,
		repTTL:     repTTL,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent)
	}
	return f
}

// Fetch retrieves rawURL from the network once and caches a 200 response
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("check robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedByRobots, rawURL)
		}
		if f.limiter != nil {
			f.limiter.ApplyCrawlDelay(rawURL, crawlDelay)
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptOPDS)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	meta := model.FetchMeta{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		Headers:      make(map[string]string),
	}
	for _, key := range []string{"Content-Length", "Server", "Cache-Control"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBytes)
	}

	result := &FetchResult{
		Body:      body,
		Meta:      meta,
		FinalURL:  resp.Request.URL.String(),
		FetchedAt: time.Now().UTC(),
	}

	if f.reps != nil && resp.StatusCode == http.StatusOK {
		_ = f.reps.Put(&cache.Representation{
			URL:          rawURL,
			FinalURL:     result.FinalURL,
			StatusCode:   resp.StatusCode,
			ContentType:  meta.ContentType,
			LastModified: meta.LastModified,
			ETag:         meta.ETag,
			Body:         body,
			FetchedAt:    result.FetchedAt,
		}, f.repTTL)
	}

	return result, nil
}

// FetchWithRetry calls Fetch, retrying transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(fetchBaseBackoff * time.Duration(1<<(attempt-1)))
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// FetchCached returns a cached representation younger than maxAge, or
// fetches it with retries
func (f *Fetcher) FetchCached(ctx context.Context, rawURL string, maxAge time.Duration) (*FetchResult, error) {
	if f.reps != nil {
		if rep, ok := f.reps.Get(rawURL, maxAge); ok {
			finalURL := rep.FinalURL
			if finalURL == "" {
				finalURL = rep.URL
			}
			return &FetchResult{
				Body: rep.Body,
				Meta: model.FetchMeta{
					StatusCode:   rep.StatusCode,
					ContentType:  rep.ContentType,
					LastModified: rep.LastModified,
					ETag:         rep.ETag,
					FromCache:    true,
				},
				FinalURL:  finalURL,
				FetchedAt: rep.FetchedAt,
			}, nil
		}
	}
	return f.FetchWithRetry(ctx, rawURL)
}

// Invalidate drops the cached representation of rawURL
func (f *Fetcher) Invalidate(rawURL string) {
	if f.reps != nil {
		_ = f.reps.Invalidate(rawURL)
	}
}

// isRetryableFetchError reports whether err is a transient failure:
// 5xx and 429 responses, connection failures and timeouts
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
