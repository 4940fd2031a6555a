package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/rehost/internal/extract"
	"github.com/ppiankov/rehost/internal/extract/adapters"
	"github.com/ppiankov/rehost/internal/model"
)

// AlternateFetcher loads single-entry documents for the description merger
type AlternateFetcher struct {
	fetcher *Fetcher
	adapter adapters.Adapter
	maxAge  time.Duration
}

// NewAlternateFetcher creates an AlternateFetcher. Cached entries younger
// than maxAge are reused.
func NewAlternateFetcher(fetcher *Fetcher, adapter adapters.Adapter, maxAge time.Duration) *AlternateFetcher {
	return &AlternateFetcher{fetcher: fetcher, adapter: adapter, maxAge: maxAge}
}

// FetchAlternate fetches href and returns the links of its single entry,
// shaped by the provider adapter
func (a *AlternateFetcher) FetchAlternate(ctx context.Context, href string) ([]model.Link, error) {
	res, err := a.fetcher.FetchCached(ctx, href, a.maxAge)
	if err != nil {
		return nil, fmt.Errorf("fetch alternate: %w", err)
	}
	if res.Meta.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: href, StatusCode: res.Meta.StatusCode, Status: http.StatusText(res.Meta.StatusCode)}
	}

	work, err := extract.ParseEntry(res.Body, res.FinalURL)
	if err != nil {
		// a broken cached copy would otherwise be reused until it expires
		if res.Meta.FromCache {
			a.fetcher.Invalidate(href)
		}
		return nil, fmt.Errorf("parse alternate: %w", err)
	}
	return adapters.ShapeLinks(a.adapter, work.Links), nil
}
