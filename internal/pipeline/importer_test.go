package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/rehost/internal/cache"
	"github.com/ppiankov/rehost/internal/extract/adapters"
	"github.com/ppiankov/rehost/internal/logger"
	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/rights"
)

const importFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dcterms="http://purl.org/dc/terms/">
  <title>Books</title>
  <entry>
    <id>http://www.feedbooks.com/book/1</id>
    <title>Moby Dick</title>
    <author><name>Herman Melville</name></author>
    <rights>This work was published before 1923 and is in the public domain in the USA only.</rights>
    <dcterms:issued>1851</dcterms:issued>
    <summary>A whale.</summary>
    <link rel="alternate" type="application/atom+xml;type=entry;profile=opds-catalog" href="/book/1.atom"/>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/book/1.epub"/>
    <link rel="http://opds-spec.org/acquisition" type="application/pdf" href="/book/1.pdf"/>
  </entry>
  <entry>
    <id>http://www.feedbooks.com/book/2</id>
    <title>Undated</title>
    <dcterms:issued>circa 1850</dcterms:issued>
  </entry>
  <entry>
    <id>http://www.feedbooks.com/book/3</id>
    <title>Mystery</title>
    <rights>Please read the legal notice included in this e-book and/or check the copyright status in your country.</rights>
    <summary>Who knows.</summary>
    <link rel="alternate" type="application/atom+xml;type=entry;profile=opds-catalog" href="/book/3.atom"/>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/book/3.epub"/>
  </entry>
  <entry>
    <id>http://www.feedbooks.com/book/4</id>
    <title>Little Brother</title>
    <rights>Attribution Share Alike (cc by-sa)</rights>
    <dcterms:issued>2008</dcterms:issued>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/book/4.epub"/>
  </entry>
</feed>`

const importEntry = `<entry xmlns="http://www.w3.org/2005/Atom">
  <id>https://www.feedbooks.com/book/1</id>
  <title>Moby Dick</title>
  <summary>A whale.</summary>
  <content type="html">&lt;p&gt;Call me Ishmael.&lt;/p&gt;</content>
</entry>`

func newTestImporter(t *testing.T) (*Importer, *httptest.Server, *atomic.Int32) {
	t.Helper()
	noSleep(t)

	var alternateHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.atom", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(importFeed))
	})
	mux.HandleFunc("/book/1.atom", func(w http.ResponseWriter, r *http.Request) {
		alternateHits.Add(1)
		_, _ = w.Write([]byte(importEntry))
	})
	mux.HandleFunc("/book/3.atom", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := model.DefaultConfig()
	cfg.HTTP.RespectRobots = false
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.Cache.Dir = t.TempDir()

	imp := NewImporter(cfg, nil)
	if err := imp.SetProvider("feedbooks"); err != nil {
		t.Fatalf("SetProvider failed: %v", err)
	}
	return imp, server, &alternateHits
}

func findWork(report *model.ImportReport, id string) *model.Work {
	for _, w := range report.Works {
		if w.Identifier == id {
			return w
		}
	}
	return nil
}

func TestImporter_ImportFeed(t *testing.T) {
	imp, server, _ := newTestImporter(t)

	report, err := imp.ImportFeed(context.Background(), server.URL+"/feed.atom")
	if err != nil {
		t.Fatalf("ImportFeed failed: %v", err)
	}

	if report.RunID == "" {
		t.Error("Expected run ID to be set")
	}
	if report.Provider != "feedbooks" {
		t.Errorf("Expected feedbooks provider, got %s", report.Provider)
	}
	if len(report.Works) != 3 {
		t.Fatalf("Expected 3 works, got %d", len(report.Works))
	}

	if len(report.Failures) != 1 || report.Failures[0].Identifier != "http://www.feedbooks.com/book/2" {
		t.Fatalf("Expected book/2 to fail, got %+v", report.Failures)
	}
	if !strings.Contains(report.Failures[0].Error, rights.ErrInvalidYear.Error()) {
		t.Errorf("Expected invalid year failure, got %s", report.Failures[0].Error)
	}

	moby := findWork(report, "http://www.feedbooks.com/book/1")
	if moby.DefaultRightsURI != model.RightsCCBYNC {
		t.Errorf("Expected CC-BY-NC, got %s", moby.DefaultRightsURI)
	}
	if oa := moby.OpenAccessLinks(); len(oa) != 1 || !strings.HasSuffix(oa[0].Href, "/book/1.epub") {
		t.Errorf("Expected only the EPUB promoted, got %+v", oa)
	}
	descs := moby.Descriptions()
	if len(descs) != 1 || descs[0].MediaType != model.MediaTypeHTML || descs[0].Content != "<p>Call me Ishmael.</p>" {
		t.Errorf("Expected description replaced from alternate entry, got %+v", descs)
	}

	mystery := findWork(report, "http://www.feedbooks.com/book/3")
	if mystery.DefaultRightsURI != model.RightsUnknown {
		t.Errorf("Expected unknown, got %s", mystery.DefaultRightsURI)
	}
	if d := mystery.Descriptions(); len(d) != 1 || d[0].Content != "Who knows." {
		t.Errorf("Expected original description kept after failed alternate, got %+v", d)
	}

	if lb := findWork(report, "http://www.feedbooks.com/book/4"); lb.DefaultRightsURI != model.RightsCCBYSA {
		t.Errorf("Expected CC-BY-SA preserved, got %s", lb.DefaultRightsURI)
	}

	if report.Improved != 1 {
		t.Errorf("Expected 1 improved work, got %d", report.Improved)
	}
	if report.RightsTally[model.RightsUnknown] != 1 || len(report.NeedsReview()) != 1 {
		t.Errorf("Unexpected tally: %+v", report.RightsTally)
	}
}

func TestImporter_AlternateCached(t *testing.T) {
	imp, server, hits := newTestImporter(t)

	for i := 0; i < 2; i++ {
		if _, err := imp.ImportFeed(context.Background(), server.URL+"/feed.atom"); err != nil {
			t.Fatalf("ImportFeed failed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected alternate entry fetched once, got %d", hits.Load())
	}
}

func TestImporter_FeedErrors(t *testing.T) {
	imp, server, _ := newTestImporter(t)

	_, err := imp.ImportFeed(context.Background(), server.URL+"/missing.atom")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Expected status error for missing feed, got %v", err)
	}

	_, err = imp.ImportDocument(context.Background(), server.URL, []byte("<html/>"))
	if err == nil || !strings.Contains(err.Error(), "parse feed") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestImporter_GenericProviderKeepsLinks(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	imp := NewImporter(cfg, nil)

	report, err := imp.ImportDocument(context.Background(), "http://example.org/opds.xml", []byte(importFeed))
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if report.Provider != "opds" {
		t.Errorf("Expected generic provider, got %s", report.Provider)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Expected no failures from the generic adapter, got %+v", report.Failures)
	}
	for _, w := range report.Works {
		if len(w.OpenAccessLinks()) != 0 {
			t.Errorf("Expected no promoted links for %s", w.Identifier)
		}
	}
}

func TestImporter_SetProviderUnknown(t *testing.T) {
	imp := NewImporter(model.DefaultConfig(), nil)
	if err := imp.SetProvider("nope"); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestSameLinks(t *testing.T) {
	a := []model.Link{{Href: "x"}}
	if !sameLinks(a, a) {
		t.Error("Expected a slice to equal itself")
	}
	b := append([]model.Link(nil), a...)
	if sameLinks(a, b) {
		t.Error("Expected copies to differ")
	}
	if !sameLinks(nil, nil) {
		t.Error("Expected empty slices to match")
	}
}

func TestNewLayeredCache_RedisFallsBackToDisk(t *testing.T) {
	tests := []struct {
		name     string
		redisURL string
	}{
		{"unparseable url", "not-a-redis-url"},
		{"server down", "redis://127.0.0.1:1/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			c := newLayeredCache(model.CacheConfig{
				Dir:       dir,
				MemoryTTL: time.Minute,
				DiskTTL:   time.Hour,
				RedisURL:  tt.redisURL,
			}, logger.NewNop())
			defer func() { _ = c.Close() }()

			if err := c.Set("rehost:v1:k", []byte("v"), 0); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Errorf("Expected one disk entry, got %d", len(entries))
			}
		})
	}
}

func TestNewLimiter_DomainRates(t *testing.T) {
	limiter := NewLimiter(model.RateLimitingConfig{
		RequestsPerSecond: 100,
		BurstSize:         5,
		DomainRates:       map[string]float64{"slow.example": 0.1},
	})

	ctx := context.Background()
	if err := limiter.Wait(ctx, "http://slow.example/a"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(short, "http://slow.example/b"); err == nil {
		t.Error("Expected the overridden host to be held back")
	}
	if err := limiter.Wait(ctx, "http://fast.example/a"); err != nil {
		t.Errorf("Expected other hosts to pass: %v", err)
	}
}

func TestImporter_Close(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()
	imp := NewImporter(cfg, nil)
	if imp.Limiter() == nil {
		t.Error("Expected a shared limiter")
	}
	if err := imp.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	cfg.Cache.Enabled = false
	if err := NewImporter(cfg, nil).Close(); err != nil {
		t.Errorf("Close without cache failed: %v", err)
	}
}

func TestAlternateFetcher_DropsBrokenCachedEntry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(importEntry))
	}))
	defer server.Close()

	href := server.URL + "/book/1.atom"
	reps := cache.NewRepresentations(cache.NewMemoryCache(time.Hour, time.Hour))
	_ = reps.Put(&cache.Representation{
		URL:        href,
		StatusCode: http.StatusOK,
		Body:       []byte("<html>maintenance</html>"),
		FetchedAt:  time.Now(),
	}, time.Hour)

	alt := NewAlternateFetcher(NewFetcher(testHTTPConfig(), nil, reps, time.Hour), adapters.NewGenericAdapter(), time.Hour)

	if _, err := alt.FetchAlternate(context.Background(), href); err == nil {
		t.Fatal("Expected parse error for broken cached entry")
	}
	if _, ok := reps.Get(href, 0); ok {
		t.Error("Expected broken entry to be dropped from the cache")
	}

	links, err := alt.FetchAlternate(context.Background(), href)
	if err != nil {
		t.Fatalf("FetchAlternate failed: %v", err)
	}
	if hits.Load() != 1 || len(links) == 0 {
		t.Errorf("Expected one network fetch with links, got %d fetches, %d links", hits.Load(), len(links))
	}
}
