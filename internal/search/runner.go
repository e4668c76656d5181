package search

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/metrics"
	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/pkg/logger"
)

const (
	maxURLsPerQuery  = 3
	maxContentLength = 500
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// Runner executes a query batch against one backend and normalizes both
// response shapes into the single SearchResult schema. Queries run strictly
// sequentially with a randomized delay in between; a failed query never
// aborts the batch.
type Runner struct {
	backend  Backend
	domains  []string
	cache    ResponseCache
	cacheTTL time.Duration
	minDelay time.Duration
	maxDelay time.Duration
	cooldown time.Duration
}

func NewRunner(backend Backend, domains []string, minDelay, maxDelay, cooldown time.Duration) *Runner {
	return &Runner{
		backend:  backend,
		domains:  domains,
		minDelay: minDelay,
		maxDelay: maxDelay,
		cooldown: cooldown,
	}
}

// WithCache makes the runner consult a response cache before hitting the
// backend. Cache failures degrade to a live query.
func (r *Runner) WithCache(c ResponseCache, ttl time.Duration) *Runner {
	r.cache = c
	r.cacheTTL = ttl
	return r
}

// Execute runs every query and returns the normalized results, stably
// sorted so trusted-domain hits come first and arrival order is preserved
// within each group.
func (r *Runner) Execute(ctx context.Context, queries []string) []models.SearchResult {
	var all []models.SearchResult

	for i, query := range queries {
		if i > 0 {
			r.wait(ctx)
		}

		resp, err := r.run(ctx, query)
		if err != nil {
			metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
			if strings.Contains(err.Error(), "429") {
				logger.Warn("Search rate limited, cooling down",
					zap.String("query", query),
					zap.Duration("cooldown", r.cooldown),
				)
				sleepCtx(ctx, r.cooldown)
			} else {
				logger.Warn("Search query failed", zap.String("query", query), zap.Error(err))
			}
			continue
		}

		metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
		all = append(all, r.normalize(query, resp)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].IsRelevantSite && !all[j].IsRelevantSite
	})

	metrics.ResultsNormalized.Add(float64(len(all)))
	logger.Info("Search batch completed",
		zap.Int("queries", len(queries)),
		zap.Int("results", len(all)),
	)

	return all
}

func (r *Runner) run(ctx context.Context, query string) (Response, error) {
	if r.cache != nil {
		if resp, ok, err := r.cache.GetResponse(ctx, query); err == nil && ok {
			logger.Debug("Search cache hit", zap.String("query", query))
			return resp, nil
		}
	}

	resp, err := r.backend.Run(ctx, query)
	if err != nil {
		return Response{}, err
	}

	if r.cache != nil && !resp.Empty() {
		if err := r.cache.SetResponse(ctx, query, resp, r.cacheTTL); err != nil {
			logger.Debug("Search cache write failed", zap.Error(err))
		}
	}

	return resp, nil
}

func (r *Runner) normalize(query string, resp Response) []models.SearchResult {
	if len(resp.Hits) > 0 {
		return r.normalizeStructured(query, resp.Hits)
	}
	if resp.RawText != "" {
		return r.normalizeText(query, resp.RawText)
	}
	return nil
}

func (r *Runner) normalizeStructured(query string, hits []Hit) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.SearchResult{
			Content:        hit.Snippet,
			Title:          hit.Title,
			Link:           hit.Link,
			Source:         hit.Link,
			Query:          query,
			Strategy:       models.StrategyStructured,
			IsRelevantSite: IsRelevantSite(hit.Link, r.domains),
		})
	}
	return results
}

func (r *Runner) normalizeText(query, text string) []models.SearchResult {
	content := truncate(text, maxContentLength)

	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return []models.SearchResult{{
			Content:  content,
			Title:    "Resultado sem URL extraída",
			Link:     "",
			Source:   fmt.Sprintf("Busca: %s", query),
			Query:    query,
			Strategy: models.StrategyText,
		}}
	}

	if len(urls) > maxURLsPerQuery {
		urls = urls[:maxURLsPerQuery]
	}

	results := make([]models.SearchResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, models.SearchResult{
			Content:        content,
			Title:          fmt.Sprintf("Resultado de %s", query),
			Link:           u,
			Source:         u,
			Query:          query,
			Strategy:       models.StrategyExtracted,
			IsRelevantSite: IsRelevantSite(u, r.domains),
		})
	}
	return results
}

func (r *Runner) wait(ctx context.Context) {
	delay := r.minDelay
	if r.maxDelay > r.minDelay {
		delay += time.Duration(rand.Int63n(int64(r.maxDelay - r.minDelay)))
	}
	sleepCtx(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ExtractURLs pulls http(s) URLs out of unstructured text, stripping
// trailing sentence punctuation and deduplicating while keeping first-seen
// order.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var urls []string
	for _, m := range matches {
		u := strings.TrimRight(m, ".,;:!?)")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// IsRelevantSite reports whether the link belongs to one of the trusted
// socio-environmental domains.
func IsRelevantSite(link string, domains []string) bool {
	if link == "" {
		return false
	}
	for _, domain := range domains {
		if strings.Contains(link, domain) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
