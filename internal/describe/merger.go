// Package describe upgrades a work's descriptions using the alternate
// single-entry documents its feed entry links to.
//
// A provider's main feed often carries a terse summary while the per-entry
// document carries the full description. The secondary entry's identifier
// is not compared with the primary one: the two commonly differ only by
// scheme (http vs https), so an alternate link is trusted to point at the
// same work.
package describe

import (
	"context"

	"github.com/ppiankov/rehost/internal/logger"
	"github.com/ppiankov/rehost/internal/model"
)

// AlternateFetcher fetches an alternate entry document and returns its links.
// Any failure (bad status, not exactly one entry, unparseable document,
// network error) is reported as an error.
type AlternateFetcher interface {
	FetchAlternate(ctx context.Context, href string) ([]model.Link, error)
}

// FetcherFunc adapts a function to AlternateFetcher
type FetcherFunc func(ctx context.Context, href string) ([]model.Link, error)

// FetchAlternate calls f
func (f FetcherFunc) FetchAlternate(ctx context.Context, href string) ([]model.Link, error) {
	return f(ctx, href)
}

// Merger replaces descriptions with better ones from alternate entries
type Merger struct {
	log logger.Logger
}

// NewMerger creates a Merger. A nil logger discards output.
func NewMerger(log logger.Logger) *Merger {
	if log == nil {
		log = logger.NewNop()
	}
	return &Merger{log: log}
}

type descriptionKey struct {
	mediaType string
	content   string
}

// Merge returns links with their descriptions replaced by the new
// descriptions of the first alternate entry that has any. Alternates are
// fetched one at a time, in order. When no alternate helps, links is
// returned unchanged. links itself is never modified.
func (m *Merger) Merge(ctx context.Context, links []model.Link, fetch AlternateFetcher) []model.Link {
	var alternates []model.Link
	existing := make(map[descriptionKey]bool)
	var rest []model.Link

	for _, l := range links {
		if l.IsAlternateEntry() {
			alternates = append(alternates, l)
		}
		if l.IsDescription() {
			existing[descriptionKey{l.MediaType, l.Content}] = true
		} else {
			rest = append(rest, l)
		}
	}

	for _, alt := range alternates {
		if ctx.Err() != nil {
			return links
		}

		secondary, err := fetch.FetchAlternate(ctx, alt.Href)
		if err != nil {
			m.log.Warn("skipping alternate entry",
				logger.String("href", alt.Href),
				logger.Error(err))
			continue
		}

		var fresh []model.Link
		for _, l := range secondary {
			if l.IsDescription() && !existing[descriptionKey{l.MediaType, l.Content}] {
				fresh = append(fresh, l)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		m.log.Debug("replacing descriptions",
			logger.String("href", alt.Href),
			logger.Int("old", len(existing)),
			logger.Int("new", len(fresh)))

		merged := make([]model.Link, 0, len(rest)+len(fresh))
		merged = append(merged, rest...)
		return append(merged, fresh...)
	}

	return links
}

// Merge runs a Merger that logs nothing
func Merge(ctx context.Context, links []model.Link, fetch AlternateFetcher) []model.Link {
	return NewMerger(nil).Merge(ctx, links, fetch)
}
