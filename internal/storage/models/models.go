package models

import "time"

// CaseRecord is one mining-concession polygon row from the dataset. The
// area is computed upstream by the geospatial loader; this pipeline never
// touches geometry.
type CaseRecord struct {
	CaseID       string
	Holder       string
	Region       string
	AreaHectares float64
}

// Strategy tags recorded on normalized search results.
const (
	StrategyStructured = "structured_result"
	StrategyExtracted  = "duckduckgo_extracted"
	StrategyText       = "text_result"
)

// SearchResult is one normalized hit. Link is either empty or an absolute
// http(s) URL. RelevanceScore stays zero until findings selection.
type SearchResult struct {
	Content        string
	Title          string
	Link           string
	Source         string
	Query          string
	Strategy       string
	IsRelevantSite bool
	RelevanceScore int
}

// TextUnit is one retrievable chunk of a SearchResult's content. IDs are
// sequential within a single analysis pass ("doc_0", "doc_1", ...) and are
// the identifiers the model cites.
type TextUnit struct {
	ID    string
	Text  string
	Link  string
	Title string
	Query string
}

// SourceRef is one cited source, deduplicated by URL.
type SourceRef struct {
	URL   string
	Title string
	Query string
}

// AnalysisResult is the outcome of one RAG pass for one case or holder.
type AnalysisResult struct {
	Summary     string
	Sources     []SourceRef
	RawFindings []SearchResult
}

// RunRecord groups the case analyses of one batch execution.
type RunRecord struct {
	ID          string
	Backend     string
	CasesTotal  int
	CasesFailed int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// CaseAnalysisRecord is the persisted form of one analyzed case.
type CaseAnalysisRecord struct {
	ID           string
	RunID        string
	CaseID       string
	Holder       string
	Region       string
	AreaHectares float64
	Summary      string
	ImpactFlag   bool
	SourceCount  int
	Backend      string
	LatencyMS    int
	CreatedAt    time.Time
}

// FindingRecord is one scored finding attached to a case analysis.
type FindingRecord struct {
	ID           int
	AnalysisID   string
	Content      string
	SourceURL    string
	Title        string
	Query        string
	RelevantSite bool
	Score        int
}

// CitedSourceRecord is one cited source row, ordered by first citation.
type CitedSourceRecord struct {
	ID         int
	AnalysisID string
	URL        string
	Title      string
	Query      string
	Position   int
}
