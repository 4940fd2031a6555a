package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/rehost/internal/cache"
	"github.com/ppiankov/rehost/internal/describe"
	"github.com/ppiankov/rehost/internal/extract"
	"github.com/ppiankov/rehost/internal/extract/adapters"
	"github.com/ppiankov/rehost/internal/logger"
	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/worker"
)

const redisPingTimeout = 2 * time.Second

// Importer turns an OPDS feed into works with rehosting rights decided
type Importer struct {
	fetcher         *Fetcher
	limiter         *worker.Limiter
	store           *cache.LayeredCache
	registry        *adapters.Registry
	merger          *describe.Merger
	log             logger.Logger
	alternateMaxAge time.Duration
	provider        adapters.Adapter
}

// NewImporter wires a fetcher, limiter and representation cache from cfg
func NewImporter(cfg *model.Config, log logger.Logger) *Importer {
	if log == nil {
		log = logger.NewNop()
	}

	var store *cache.LayeredCache
	var reps *cache.Representations
	if cfg.Cache.Enabled {
		store = newLayeredCache(cfg.Cache, log)
		reps = cache.NewRepresentations(store)
	}
	limiter := NewLimiter(cfg.RateLimiting)

	return &Importer{
		fetcher:         NewFetcher(cfg.HTTP, limiter, reps, cfg.Cache.DiskTTL),
		limiter:         limiter,
		store:           store,
		registry:        adapters.NewRegistry(),
		merger:          describe.NewMerger(log),
		log:             log,
		alternateMaxAge: cfg.Cache.AlternateMaxAge,
	}
}

// NewLimiter builds the per-domain limiter, applying host overrides
func NewLimiter(cfg model.RateLimitingConfig) *worker.Limiter {
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	for host, rps := range cfg.DomainRates {
		limiter.SetDomainRate(host, rps, 0)
	}
	return limiter
}

// newLayeredCache stacks memory over Redis when configured and reachable,
// otherwise over disk
func newLayeredCache(cfg model.CacheConfig, log logger.Logger) *cache.LayeredCache {
	if cfg.RedisURL != "" {
		rc, err := connectRedis(cfg)
		if err == nil {
			return cache.NewLayered(cache.NewMemoryCache(cfg.MemoryTTL, 10*time.Minute), rc)
		}
		log.Warn("redis cache unavailable, using disk", logger.Error(err))
	}
	return cache.NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

func connectRedis(cfg model.CacheConfig) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.DiskTTL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}

// SetProvider forces a named adapter instead of choosing one by feed URL
func (i *Importer) SetProvider(name string) error {
	a, err := i.registry.Lookup(name)
	if err != nil {
		return err
	}
	i.provider = a
	return nil
}

// Limiter returns the importer's per-domain limiter
func (i *Importer) Limiter() *worker.Limiter {
	return i.limiter
}

// Close releases the representation cache
func (i *Importer) Close() error {
	if i.store == nil {
		return nil
	}
	return i.store.Close()
}

// ImportFeed fetches and imports one feed
func (i *Importer) ImportFeed(ctx context.Context, feedURL string) (*model.ImportReport, error) {
	res, err := i.fetcher.FetchWithRetry(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	report, err := i.ImportDocument(ctx, res.FinalURL, res.Body)
	if err != nil {
		return nil, err
	}
	report.FeedURL = feedURL
	report.FetchMeta = res.Meta
	report.FetchedAt = res.FetchedAt
	return report, nil
}

// ImportDocument imports an already fetched feed or entry document
func (i *Importer) ImportDocument(ctx context.Context, feedURL string, data []byte) (*model.ImportReport, error) {
	works, err := extract.Parse(data, feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	adapter := i.provider
	if adapter == nil {
		adapter = i.registry.FindAdapter(feedURL)
	}
	runID := uuid.NewString()
	log := i.log.With(
		logger.String("run_id", runID),
		logger.String("feed", feedURL),
		logger.String("provider", adapter.Name()))
	log.Info("importing feed", logger.Int("entries", len(works)))

	report := &model.ImportReport{
		RunID:     runID,
		FeedURL:   feedURL,
		Provider:  adapter.Name(),
		FetchedAt: time.Now().UTC(),
	}

	var alternates describe.AlternateFetcher = NewAlternateFetcher(i.fetcher, adapter, i.alternateMaxAge)

	for _, work := range works {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import feed: %w", err)
		}

		work.Links = adapters.ShapeLinks(adapter, work.Links)

		status, err := adapter.RightsURI(work)
		if err != nil {
			log.Error("dropping entry", logger.String("identifier", work.Identifier), logger.Error(err))
			report.Failures = append(report.Failures, model.Failure{
				Identifier: work.Identifier,
				Error:      err.Error(),
			})
			continue
		}
		work.DefaultRightsURI = status

		if adapter.ImproveDescriptions() {
			merged := i.merger.Merge(ctx, work.Links, alternates)
			if !sameLinks(merged, work.Links) {
				report.Improved++
			}
			work.Links = merged
		}

		report.Works = append(report.Works, work)
	}

	report.Tally()
	log.Info("imported feed",
		logger.Int("works", len(report.Works)),
		logger.Int("failures", len(report.Failures)),
		logger.Int("improved", report.Improved),
		logger.Int("needs_review", len(report.NeedsReview())))

	return report, nil
}

// sameLinks reports whether a and b are the same slice
func sameLinks(a, b []model.Link) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
