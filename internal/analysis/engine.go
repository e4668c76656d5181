// Package analysis runs the per-case RAG pass: query generation, search,
// unit assembly, ephemeral indexing, retrieval and summarization.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/ingestion"
	"github.com/minewatch/backend/internal/metrics"
	"github.com/minewatch/backend/internal/search"
	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/internal/vector"
	"github.com/minewatch/backend/pkg/logger"
)

const (
	// Terminal summaries for the two defined empty states.
	summaryNoResults = "Nenhuma informação encontrada na web para esta consulta."
	summaryNoContent = "Os resultados da busca não continham conteúdo processável."
)

// Searcher executes a query batch and returns normalized results.
// Implemented by search.Runner.
type Searcher interface {
	Execute(ctx context.Context, queries []string) []models.SearchResult
}

// LLM is the slice of the language-model client the engine needs.
type LLM interface {
	AnalyzeCase(ctx context.Context, question, contextBlock string) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Engine struct {
	searcher  Searcher
	assembler *ingestion.Assembler
	llm       LLM
	vectors   vector.Provider

	domains     []string
	keywords    []string
	topK        int
	maxFindings int
}

func NewEngine(searcher Searcher, assembler *ingestion.Assembler, llm LLM, vectors vector.Provider, domains, keywords []string, topK, maxFindings int) *Engine {
	if topK <= 0 {
		topK = 8
	}
	if maxFindings <= 0 {
		maxFindings = 5
	}
	return &Engine{
		searcher:    searcher,
		assembler:   assembler,
		llm:         llm,
		vectors:     vectors,
		domains:     domains,
		keywords:    keywords,
		topK:        topK,
		maxFindings: maxFindings,
	}
}

// Request identifies one case (or holder profile) to analyze. Question
// overrides the default per-case question when set. Progress, when non-nil,
// receives stage names as the pass advances.
type Request struct {
	CaseID   string
	Holder   string
	Region   string
	Question string
	Progress func(stage string)
}

func (r Request) question() string {
	if r.Question != "" {
		return r.Question
	}
	return fmt.Sprintf("Analise todas as informações sobre o processo %s da %s, especialmente impactos socioambientais", r.CaseID, r.Holder)
}

func (r Request) progress(stage string) {
	if r.Progress != nil {
		r.Progress(stage)
	}
}

// Analyze runs one full RAG pass. Empty search results and unprocessable
// content are defined terminal states, not errors; index or model failures
// propagate to the caller.
func (e *Engine) Analyze(ctx context.Context, req Request) (*models.AnalysisResult, error) {
	start := time.Now()

	logger.Info("Analyzing case",
		zap.String("case_id", req.CaseID),
		zap.String("holder", req.Holder),
		zap.String("region", req.Region),
	)

	req.progress("searching")
	queries := search.GenerateQueries(req.Holder, req.CaseID, req.Region, e.domains)
	results := e.searcher.Execute(ctx, queries)

	if len(results) == 0 {
		metrics.AnalysesTotal.WithLabelValues("no_results").Inc()
		return &models.AnalysisResult{Summary: summaryNoResults}, nil
	}

	req.progress("assembling")
	units := e.assembler.Assemble(results)
	if len(units) == 0 {
		metrics.AnalysesTotal.WithLabelValues("no_content").Inc()
		return &models.AnalysisResult{Summary: summaryNoContent}, nil
	}

	req.progress("indexing")
	texts := make([]string, len(units))
	for i, unit := range units {
		texts[i] = unit.Text
	}

	embeddings, err := e.llm.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to embed text units: %w", err)
	}
	if len(embeddings) != len(units) {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(units))
	}

	idx, err := e.vectors.NewIndex(ctx)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	defer idx.Close(ctx)

	entries := make([]vector.Entry, len(units))
	for i, unit := range units {
		entries[i] = vector.Entry{Unit: unit, Embedding: embeddings[i]}
	}
	if err := idx.Insert(ctx, entries); err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to index text units: %w", err)
	}

	req.progress("retrieving")
	question := req.question()

	questionEmbedding, err := e.llm.GenerateEmbedding(ctx, question)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := idx.Search(ctx, questionEmbedding, e.topK)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to retrieve units: %w", err)
	}

	req.progress("summarizing")
	summary, err := e.llm.AnalyzeCase(ctx, question, formatContext(matches))
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	findings := search.SelectFindings(results, e.keywords, e.maxFindings)

	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.WithLabelValues("case").Observe(time.Since(start).Seconds())
	metrics.FindingsPerCase.Observe(float64(len(findings)))

	logger.Info("Case analysis completed",
		zap.String("case_id", req.CaseID),
		zap.Int("results", len(results)),
		zap.Int("units", len(units)),
		zap.Int("findings", len(findings)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &models.AnalysisResult{
		Summary:     summary,
		Sources:     ExtractCitedSources(summary, matches),
		RawFindings: findings,
	}, nil
}

// formatContext renders the retrieved units for the prompt, each labelled
// with the id the model must cite.
func formatContext(matches []vector.Match) string {
	var builder strings.Builder
	for _, match := range matches {
		builder.WriteString(fmt.Sprintf("[%s]", match.Unit.ID))
		if match.Unit.Link != "" {
			builder.WriteString(fmt.Sprintf(" (%s)", match.Unit.Link))
		}
		builder.WriteString("\n")
		builder.WriteString(match.Unit.Text)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

var citationPattern = regexp.MustCompile(`doc_\d+`)

// ExtractCitedSources maps doc_N citations in the summary back to the
// retrieved units and returns their sources, deduplicated by URL in order
// of first citation. Units without an http(s) link are skipped.
func ExtractCitedSources(summary string, matches []vector.Match) []models.SourceRef {
	units := make(map[string]models.TextUnit, len(matches))
	for _, match := range matches {
		units[match.Unit.ID] = match.Unit
	}

	seen := make(map[string]bool)
	var sources []models.SourceRef
	for _, citation := range citationPattern.FindAllString(summary, -1) {
		unit, ok := units[citation]
		if !ok {
			continue
		}
		if !strings.HasPrefix(unit.Link, "http") || seen[unit.Link] {
			continue
		}
		seen[unit.Link] = true
		sources = append(sources, models.SourceRef{
			URL:   unit.Link,
			Title: unit.Title,
			Query: unit.Query,
		})
	}
	return sources
}
