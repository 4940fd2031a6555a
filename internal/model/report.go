package model

import "time"

// ImportReport summarizes the outcome of importing one feed
type ImportReport struct {
	RunID       string               `json:"run_id"`
	FeedURL     string               `json:"feed_url"`
	Provider    string               `json:"provider"`
	FetchedAt   time.Time            `json:"fetched_at"`
	FetchMeta   FetchMeta            `json:"fetch_meta"`
	Works       []*Work              `json:"works"`
	Failures    []Failure            `json:"failures,omitempty"`
	Improved    int                  `json:"improved_descriptions"`
	RightsTally map[RightsStatus]int `json:"rights_tally"`
}

// FetchMeta contains HTTP metadata from fetching a representation
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	FromCache    bool              `json:"from_cache,omitempty"`
}

// Failure records an entry that could not be turned into a Work
type Failure struct {
	Identifier string `json:"identifier"`
	Error      string `json:"error"`
}

// NeedsReview returns the works whose rights could not be determined and
// must be investigated by hand before they can be rehosted
func (r *ImportReport) NeedsReview() []*Work {
	var out []*Work
	for _, w := range r.Works {
		if w.DefaultRightsURI == RightsUnknown {
			out = append(out, w)
		}
	}
	return out
}

// Tally recounts RightsTally from the current works
func (r *ImportReport) Tally() {
	r.RightsTally = make(map[RightsStatus]int)
	for _, w := range r.Works {
		r.RightsTally[w.DefaultRightsURI]++
	}
}
