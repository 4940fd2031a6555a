// Package validate checks that a work's open-access downloads can actually
// be fulfilled before the work is published.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/util"
	"github.com/ppiankov/rehost/internal/worker"
	"golang.org/x/sync/errgroup"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// LinkResult is the outcome of checking one download link
type LinkResult struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code,omitempty"`
	Reachable   bool   `json:"reachable"`
	Dead        bool   `json:"dead,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WorkResult groups the link results of one work
type WorkResult struct {
	Identifier  string       `json:"identifier"`
	Links       []LinkResult `json:"links"`
	Fulfillable bool         `json:"fulfillable"`
}

// Checker checks download links concurrently
type Checker struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
	limiter    *worker.Limiter
}

// NewChecker creates a link checker. The limiter is optional.
func NewChecker(cfg model.HTTPConfig, maxWorkers int, limiter *worker.Limiter) *Checker {
	if maxWorkers <= 0 {
		maxWorkers = 20
	}

	return &Checker{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxWorkers: maxWorkers,
		limiter:    limiter,
	}
}

// CheckLinks checks every URL and returns results in input order
func (c *Checker) CheckLinks(ctx context.Context, urls []string) []LinkResult {
	results := make([]LinkResult, len(urls))

	var g errgroup.Group
	g.SetLimit(c.maxWorkers)

	for i, link := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = LinkResult{URL: link, Error: "context cancelled"}
				return nil
			}
			results[i] = c.checkWithRetry(ctx, link)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// CheckWorks checks the open-access downloads of each work. A work is
// fulfillable when at least one of them is reachable. The returned set
// holds the identifiers of unfulfillable works.
func (c *Checker) CheckWorks(ctx context.Context, works []*model.Work) ([]WorkResult, map[string]bool) {
	var urls []string
	index := make(map[string]int)
	for _, w := range works {
		for _, l := range w.OpenAccessLinks() {
			if _, seen := index[l.Href]; !seen {
				index[l.Href] = len(urls)
				urls = append(urls, l.Href)
			}
		}
	}

	checked := c.CheckLinks(ctx, urls)

	results := make([]WorkResult, 0, len(works))
	unfulfillable := make(map[string]bool)
	for _, w := range works {
		wr := WorkResult{Identifier: w.Identifier}
		for _, l := range w.OpenAccessLinks() {
			r := checked[index[l.Href]]
			wr.Links = append(wr.Links, r)
			if r.Reachable {
				wr.Fulfillable = true
			}
		}
		if !wr.Fulfillable {
			unfulfillable[w.Identifier] = true
		}
		results = append(results, wr)
	}
	return results, unfulfillable
}

func (c *Checker) checkSingle(ctx context.Context, link string) LinkResult {
	result := c.request(ctx, http.MethodHead, link)
	// some download servers refuse HEAD
	if result.StatusCode == http.StatusMethodNotAllowed || result.StatusCode == http.StatusNotImplemented {
		result = c.request(ctx, http.MethodGet, link)
	}
	return result
}

func (c *Checker) request(ctx context.Context, method, link string) LinkResult {
	result := LinkResult{URL: link}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, link); err != nil {
			result.Error = fmt.Sprintf("rate limit: %v", err)
			return result
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.Dead = true
		return result
	}
	req.Header.Set("User-Agent", c.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Reachable = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Dead = true
	}

	if final := resp.Request.URL.String(); final != link {
		result.RedirectURL = final
	}
	return result
}

// checkWithRetry retries transient failures with exponential backoff
func (c *Checker) checkWithRetry(ctx context.Context, link string) LinkResult {
	var result LinkResult
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = c.checkSingle(ctx, link)
		if !isRetryableLinkResult(result) || ctx.Err() != nil {
			return result
		}
		if attempt < validateMaxRetries-1 {
			validateSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryableLinkResult returns true for results that indicate transient failures
func isRetryableLinkResult(result LinkResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && isRetryableNetworkError(result.Error)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
