package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Representation is a fetched document as stored in the cache
type Representation struct {
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url,omitempty"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	Body         []byte    `json:"body"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Representations stores fetched documents keyed by URL
type Representations struct {
	cache Cache
	now   func() time.Time
}

// NewRepresentations wraps a Cache
func NewRepresentations(c Cache) *Representations {
	return &Representations{cache: c, now: time.Now}
}

// Get returns the cached representation of url if it is younger than
// maxAge. A zero maxAge accepts any age the underlying cache still holds.
func (r *Representations) Get(url string, maxAge time.Duration) (*Representation, bool) {
	data, ok := r.cache.Get(CacheKey(url))
	if !ok {
		return nil, false
	}

	var rep Representation
	if err := json.Unmarshal(data, &rep); err != nil {
		_ = r.cache.Delete(CacheKey(url))
		return nil, false
	}

	if maxAge > 0 && r.now().Sub(rep.FetchedAt) > maxAge {
		return nil, false
	}
	return &rep, true
}

// Put stores a representation
func (r *Representations) Put(rep *Representation, ttl time.Duration) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal representation: %w", err)
	}
	return r.cache.Set(CacheKey(rep.URL), data, ttl)
}

// Invalidate drops the cached representation of url
func (r *Representations) Invalidate(url string) error {
	return r.cache.Delete(CacheKey(url))
}
