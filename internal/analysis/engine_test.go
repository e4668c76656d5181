package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/backend/internal/ingestion"
	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/internal/vector"
)

type fakeSearcher struct {
	results []models.SearchResult
	queries []string
}

func (f *fakeSearcher) Execute(ctx context.Context, queries []string) []models.SearchResult {
	f.queries = queries
	return f.results
}

type fakeLLM struct {
	summary      string
	analyzeErr   error
	embedErr     error
	lastQuestion string
	lastContext  string
}

func (f *fakeLLM) AnalyzeCase(ctx context.Context, question, contextBlock string) (string, error) {
	f.lastQuestion = question
	f.lastContext = contextBlock
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	return f.summary, nil
}

func (f *fakeLLM) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return embed(text), nil
}

func (f *fakeLLM) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embed(text)
	}
	return out, nil
}

// embed produces a deterministic 3-dim vector from the text so retrieval
// order is stable in tests.
func embed(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r % 13)
	}
	return []float32{sum + 1, float32(len(text)%7) + 1, 1}
}

var (
	testDomains  = []string{"mpf.mp.br"}
	testKeywords = []string{"conflito", "impacto", "terra indígena"}
)

func newTestEngine(searcher *fakeSearcher, llm *fakeLLM) *Engine {
	return NewEngine(
		searcher,
		ingestion.NewAssembler(1000, 200),
		llm,
		vector.NewMemoryProvider(),
		testDomains,
		testKeywords,
		8,
		5,
	)
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("Full pass produces summary, sources and findings", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{
				Content:        "Conflito com terra indígena documentado pelo MPF",
				Title:          "Ação do MPF",
				Link:           "https://www.mpf.mp.br/acao",
				Query:          "q1",
				IsRelevantSite: true,
			},
			{
				Content: "Notícia genérica sobre impacto da mineradora",
				Title:   "Notícia",
				Link:    "https://example.com/noticia",
				Query:   "q2",
			},
		}}
		llm := &fakeLLM{summary: "A empresa enfrenta conflito [Fonte: doc_0] e impacto relatado [Fonte: doc_1]."}
		engine := newTestEngine(searcher, llm)

		result, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X", Region: "PA"})

		require.NoError(t, err)
		assert.Equal(t, llm.summary, result.Summary)

		require.Len(t, result.Sources, 2)
		assert.Equal(t, "https://www.mpf.mp.br/acao", result.Sources[0].URL)
		assert.Equal(t, "https://example.com/noticia", result.Sources[1].URL)

		require.NotEmpty(t, result.RawFindings)
		assert.Equal(t, "Ação do MPF", result.RawFindings[0].Title)
		assert.Greater(t, result.RawFindings[0].RelevanceScore, 10)
	})

	t.Run("Generated queries cover the case", func(t *testing.T) {
		searcher := &fakeSearcher{}
		engine := newTestEngine(searcher, &fakeLLM{})

		_, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X", Region: "PA"})
		require.NoError(t, err)

		require.NotEmpty(t, searcher.queries)
		joined := strings.Join(searcher.queries, " ")
		assert.Contains(t, joined, "Mineradora X")
		assert.Contains(t, joined, "800.123/2020")
	})

	t.Run("No search results is a terminal state, not an error", func(t *testing.T) {
		engine := newTestEngine(&fakeSearcher{}, &fakeLLM{})

		result, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})

		require.NoError(t, err)
		assert.Equal(t, "Nenhuma informação encontrada na web para esta consulta.", result.Summary)
		assert.Empty(t, result.Sources)
		assert.Empty(t, result.RawFindings)
	})

	t.Run("Results without content are a terminal state", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "", Link: "https://example.com"},
		}}
		engine := newTestEngine(searcher, &fakeLLM{})

		result, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})

		require.NoError(t, err)
		assert.Equal(t, "Os resultados da busca não continham conteúdo processável.", result.Summary)
	})

	t.Run("Custom question overrides the default", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo", Link: "https://example.com", Query: "q"},
		}}
		llm := &fakeLLM{summary: "resumo"}
		engine := newTestEngine(searcher, llm)

		_, err := engine.Analyze(ctx, Request{
			CaseID:   "Perfil Empresarial",
			Holder:   "Mineradora X",
			Question: `"Mineradora X" perfil ambiental`,
		})

		require.NoError(t, err)
		assert.Equal(t, `"Mineradora X" perfil ambiental`, llm.lastQuestion)
	})

	t.Run("Default question names case and holder", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo", Query: "q"},
		}}
		llm := &fakeLLM{summary: "resumo"}
		engine := newTestEngine(searcher, llm)

		_, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})

		require.NoError(t, err)
		assert.Contains(t, llm.lastQuestion, "800.123/2020")
		assert.Contains(t, llm.lastQuestion, "Mineradora X")
	})

	t.Run("Prompt context labels units with citable ids", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo relevante", Link: "https://example.com", Query: "q"},
		}}
		llm := &fakeLLM{summary: "resumo"}
		engine := newTestEngine(searcher, llm)

		_, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})

		require.NoError(t, err)
		assert.Contains(t, llm.lastContext, "[doc_0]")
		assert.Contains(t, llm.lastContext, "(https://example.com)")
		assert.Contains(t, llm.lastContext, "conteúdo relevante")
	})

	t.Run("Summarization failure propagates", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo", Query: "q"},
		}}
		llm := &fakeLLM{analyzeErr: errors.New("model unavailable")}
		engine := newTestEngine(searcher, llm)

		_, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})
		assert.Error(t, err)
	})

	t.Run("Embedding failure propagates", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo", Query: "q"},
		}}
		llm := &fakeLLM{embedErr: errors.New("embedding unavailable")}
		engine := newTestEngine(searcher, llm)

		_, err := engine.Analyze(ctx, Request{CaseID: "800.123/2020", Holder: "Mineradora X"})
		assert.Error(t, err)
	})

	t.Run("Progress callback sees every stage in order", func(t *testing.T) {
		searcher := &fakeSearcher{results: []models.SearchResult{
			{Content: "conteúdo", Query: "q"},
		}}
		engine := newTestEngine(searcher, &fakeLLM{summary: "resumo"})

		var stages []string
		_, err := engine.Analyze(ctx, Request{
			CaseID:   "800.123/2020",
			Holder:   "Mineradora X",
			Progress: func(stage string) { stages = append(stages, stage) },
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"searching", "assembling", "indexing", "retrieving", "summarizing"}, stages)
	})
}

func TestExtractCitedSources(t *testing.T) {
	matches := []vector.Match{
		{Unit: models.TextUnit{ID: "doc_0", Link: "https://a.com", Title: "A", Query: "qa"}},
		{Unit: models.TextUnit{ID: "doc_1", Link: "https://b.com", Title: "B", Query: "qb"}},
		{Unit: models.TextUnit{ID: "doc_2", Link: "", Title: "C", Query: "qc"}},
		{Unit: models.TextUnit{ID: "doc_3", Link: "https://a.com", Title: "A2", Query: "qa2"}},
	}

	t.Run("Orders by first citation and dedups by URL", func(t *testing.T) {
		summary := "Primeiro [Fonte: doc_1], depois [Fonte: doc_0], de novo [Fonte: doc_3]."

		sources := ExtractCitedSources(summary, matches)

		require.Len(t, sources, 2)
		assert.Equal(t, "https://b.com", sources[0].URL)
		assert.Equal(t, "https://a.com", sources[1].URL)
		assert.Equal(t, "A", sources[1].Title)
	})

	t.Run("Skips units without http links", func(t *testing.T) {
		sources := ExtractCitedSources("ver [Fonte: doc_2]", matches)
		assert.Empty(t, sources)
	})

	t.Run("Ignores citations of unknown units", func(t *testing.T) {
		sources := ExtractCitedSources("ver [Fonte: doc_99]", matches)
		assert.Empty(t, sources)
	})

	t.Run("No citations yields no sources", func(t *testing.T) {
		sources := ExtractCitedSources("resumo sem citações", matches)
		assert.Empty(t, sources)
	})
}
