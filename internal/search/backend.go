package search

import (
	"context"
	"time"
)

// Hit is one structured result from a provider that returns them.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Response is what a backend returns for one query. Exactly one side is
// populated: structured providers fill Hits, text providers fill RawText.
type Response struct {
	Hits    []Hit  `json:"hits,omitempty"`
	RawText string `json:"raw_text,omitempty"`
}

// Empty reports whether the backend returned nothing usable.
func (r Response) Empty() bool {
	return len(r.Hits) == 0 && r.RawText == ""
}

// Backend is the single capability every search provider implements.
type Backend interface {
	Name() string
	Run(ctx context.Context, query string) (Response, error)
}

// ResponseCache stores raw backend responses keyed by query. Implemented by
// the redis cache; optional everywhere it is accepted.
type ResponseCache interface {
	GetResponse(ctx context.Context, query string) (Response, bool, error)
	SetResponse(ctx context.Context, query string, resp Response, ttl time.Duration) error
}
