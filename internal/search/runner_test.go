package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/backend/internal/storage/models"
)

type fakeBackend struct {
	responses map[string]Response
	errs      map[string]error
	calls     []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Run(ctx context.Context, query string) (Response, error) {
	f.calls = append(f.calls, query)
	if err, ok := f.errs[query]; ok {
		return Response{}, err
	}
	return f.responses[query], nil
}

func newTestRunner(backend Backend) *Runner {
	domains := []string{"mpf.mp.br", "ibama.gov.br"}
	return NewRunner(backend, domains, 0, 0, 0)
}

func TestRunnerExecute(t *testing.T) {
	t.Run("Normalizes structured hits", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {Hits: []Hit{
				{Title: "Multa ambiental", Link: "https://www.ibama.gov.br/multas/123", Snippet: "Empresa autuada"},
				{Title: "Notícia", Link: "https://example.com/news", Snippet: "Outro resultado"},
			}},
		}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1"})

		require.Len(t, results, 2)
		assert.Equal(t, models.StrategyStructured, results[0].Strategy)
		assert.Equal(t, "https://www.ibama.gov.br/multas/123", results[0].Link)
		assert.True(t, results[0].IsRelevantSite)
		assert.False(t, results[1].IsRelevantSite)
		assert.Equal(t, "q1", results[0].Query)
	})

	t.Run("Extracts up to three URLs from raw text", func(t *testing.T) {
		text := "veja https://a.com/1 e https://b.com/2 e https://c.com/3 e https://d.com/4"
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {RawText: text},
		}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1"})

		require.Len(t, results, 3)
		for _, r := range results {
			assert.Equal(t, models.StrategyExtracted, r.Strategy)
			assert.Equal(t, "Resultado de q1", r.Title)
			assert.Equal(t, r.Link, r.Source)
		}
		assert.Equal(t, "https://a.com/1", results[0].Link)
	})

	t.Run("Raw text without URLs yields one linkless result", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {RawText: "apenas texto sem links sobre mineração"},
		}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1"})

		require.Len(t, results, 1)
		assert.Equal(t, models.StrategyText, results[0].Strategy)
		assert.Equal(t, "Resultado sem URL extraída", results[0].Title)
		assert.Empty(t, results[0].Link)
		assert.Equal(t, "Busca: q1", results[0].Source)
		assert.False(t, results[0].IsRelevantSite)
	})

	t.Run("Truncates raw text content to the cap", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {RawText: strings.Repeat("a", 600)},
		}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1"})

		require.Len(t, results, 1)
		assert.Len(t, []rune(results[0].Content), 500)
	})

	t.Run("Failed query is skipped without aborting the batch", func(t *testing.T) {
		backend := &fakeBackend{
			responses: map[string]Response{
				"ok": {Hits: []Hit{{Title: "t", Link: "https://example.com", Snippet: "s"}}},
			},
			errs: map[string]error{
				"bad": errors.New("connection refused"),
			},
		}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"bad", "ok"})

		require.Len(t, results, 1)
		assert.Equal(t, []string{"bad", "ok"}, backend.calls)
	})

	t.Run("Rate limited query cools down and continues", func(t *testing.T) {
		backend := &fakeBackend{
			responses: map[string]Response{
				"ok": {Hits: []Hit{{Title: "t", Link: "https://example.com", Snippet: "s"}}},
			},
			errs: map[string]error{
				"limited": errors.New("google search returned status 429"),
			},
		}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"limited", "ok"})

		require.Len(t, results, 1)
		assert.Equal(t, "ok", results[0].Query)
	})

	t.Run("Trusted-domain results sort first preserving arrival order", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {Hits: []Hit{
				{Title: "a", Link: "https://example.com/a", Snippet: "s"},
				{Title: "b", Link: "https://www.mpf.mp.br/b", Snippet: "s"},
			}},
			"q2": {Hits: []Hit{
				{Title: "c", Link: "https://example.com/c", Snippet: "s"},
				{Title: "d", Link: "https://ibama.gov.br/d", Snippet: "s"},
			}},
		}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1", "q2"})

		require.Len(t, results, 4)
		assert.Equal(t, "b", results[0].Title)
		assert.Equal(t, "d", results[1].Title)
		assert.Equal(t, "a", results[2].Title)
		assert.Equal(t, "c", results[3].Title)
	})

	t.Run("Empty batch returns no results", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{}}
		runner := newTestRunner(backend)

		results := runner.Execute(context.Background(), []string{"q1", "q2"})
		assert.Empty(t, results)
	})
}

type fakeCache struct {
	store map[string]Response
	sets  int
}

func (f *fakeCache) GetResponse(ctx context.Context, query string) (Response, bool, error) {
	resp, ok := f.store[query]
	return resp, ok, nil
}

func (f *fakeCache) SetResponse(ctx context.Context, query string, resp Response, ttl time.Duration) error {
	f.store[query] = resp
	f.sets++
	return nil
}

func TestRunnerCache(t *testing.T) {
	t.Run("Cache hit skips the backend", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{}}
		cache := &fakeCache{store: map[string]Response{
			"q1": {Hits: []Hit{{Title: "cached", Link: "https://example.com", Snippet: "s"}}},
		}}
		runner := newTestRunner(backend).WithCache(cache, time.Hour)

		results := runner.Execute(context.Background(), []string{"q1"})

		require.Len(t, results, 1)
		assert.Equal(t, "cached", results[0].Title)
		assert.Empty(t, backend.calls)
	})

	t.Run("Cache miss stores the live response", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{
			"q1": {Hits: []Hit{{Title: "live", Link: "https://example.com", Snippet: "s"}}},
		}}
		cache := &fakeCache{store: map[string]Response{}}
		runner := newTestRunner(backend).WithCache(cache, time.Hour)

		runner.Execute(context.Background(), []string{"q1"})

		assert.Equal(t, 1, cache.sets)
	})

	t.Run("Empty responses are not cached", func(t *testing.T) {
		backend := &fakeBackend{responses: map[string]Response{"q1": {}}}
		cache := &fakeCache{store: map[string]Response{}}
		runner := newTestRunner(backend).WithCache(cache, time.Hour)

		runner.Execute(context.Background(), []string{"q1"})

		assert.Zero(t, cache.sets)
	})
}

func TestExtractURLs(t *testing.T) {
	t.Run("Strips trailing sentence punctuation", func(t *testing.T) {
		urls := ExtractURLs("veja https://example.com/page. e também https://other.com/x,")
		assert.Equal(t, []string{"https://example.com/page", "https://other.com/x"}, urls)
	})

	t.Run("Deduplicates keeping first-seen order", func(t *testing.T) {
		urls := ExtractURLs("https://b.com https://a.com https://b.com")
		assert.Equal(t, []string{"https://b.com", "https://a.com"}, urls)
	})

	t.Run("Returns nothing for plain text", func(t *testing.T) {
		assert.Empty(t, ExtractURLs("nenhum link aqui"))
	})
}

func TestIsRelevantSite(t *testing.T) {
	domains := []string{"mpf.mp.br", "ibama.gov.br"}

	assert.True(t, IsRelevantSite("https://www.mpf.mp.br/pa/sala-de-imprensa", domains))
	assert.False(t, IsRelevantSite("https://example.com", domains))
	assert.False(t, IsRelevantSite("", domains))
}
