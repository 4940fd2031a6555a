package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("http://example.com/a")
	if !strings.HasPrefix(a, "rehost:v1:") {
		t.Errorf("Unexpected key prefix: %s", a)
	}
	if a == CacheKey("http://example.com/b") {
		t.Error("Expected distinct keys for distinct URLs")
	}
	if a != CacheKey("http://example.com/a") {
		t.Error("Expected stable keys")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss")
	}
	_ = c.Set("k", []byte("v"), 0)
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("Expected hit, got %q %v", val, ok)
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after delete")
	}

	_ = c.Set("short", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestDiskCache(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("Expected hit, got %q %v", val, ok)
	}

	if err := c.Set("old", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("Expected expired entry to miss")
	}

	if err := c.Delete("never-set"); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after clear")
	}
}

type closingCache struct {
	*MemoryCache
	closed int
}

func (c *closingCache) Close() error {
	c.closed++
	return nil
}

func TestLayeredCache_Close(t *testing.T) {
	persistent := &closingCache{MemoryCache: NewMemoryCache(time.Hour, time.Hour)}
	c := NewLayered(NewMemoryCache(time.Hour, time.Hour), persistent)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if persistent.closed != 1 {
		t.Errorf("Expected persistent layer closed once, got %d", persistent.closed)
	}

	if err := NewLayeredCache(time.Hour, t.TempDir(), time.Hour).Close(); err != nil {
		t.Errorf("Close of disk layers failed: %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	_ = disk.Set("k", []byte("v"), 0)

	c := NewLayeredCache(time.Hour, dir, time.Hour)
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Fatalf("Expected disk hit, got %q %v", val, ok)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("Expected value promoted to memory")
	}
}

func TestRepresentations_MaxAge(t *testing.T) {
	now := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	reps := NewRepresentations(NewMemoryCache(time.Hour, time.Hour))
	reps.now = func() time.Time { return now }

	rep := &Representation{
		URL:        "http://example.com/entry/1",
		StatusCode: 200,
		Body:       []byte("<entry/>"),
		FetchedAt:  now.Add(-10 * 24 * time.Hour),
	}
	if err := reps.Put(rep, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := reps.Get(rep.URL, 30*24*time.Hour)
	if !ok {
		t.Fatal("Expected fresh representation")
	}
	if string(got.Body) != "<entry/>" || got.StatusCode != 200 {
		t.Errorf("Unexpected representation: %+v", got)
	}

	if _, ok := reps.Get(rep.URL, 24*time.Hour); ok {
		t.Error("Expected stale representation to miss")
	}
	if _, ok := reps.Get(rep.URL, 0); !ok {
		t.Error("Expected zero max age to accept any age")
	}

	_ = reps.Invalidate(rep.URL)
	if _, ok := reps.Get(rep.URL, 0); ok {
		t.Error("Expected miss after invalidate")
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache("not-a-redis-url", time.Hour); err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}

func TestRedisCache(t *testing.T) {
	rawURL := os.Getenv("REHOST_TEST_REDIS_URL")
	if rawURL == "" {
		t.Skip("REHOST_TEST_REDIS_URL not set")
	}

	c, err := NewRedisCache(rawURL, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer func() { _ = c.Close() }()
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	key := CacheKey("http://example.com/redis-test")
	if err := c.Set(key, []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if val, ok := c.Get(key); !ok || string(val) != "v" {
		t.Errorf("Expected hit, got %q %v", val, ok)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("Expected miss after clear")
	}
}
