package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		cases_total INTEGER NOT NULL,
		cases_failed INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON analysis_runs(started_at);

	CREATE TABLE IF NOT EXISTS case_analyses (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		case_id TEXT NOT NULL,
		holder TEXT NOT NULL,
		region TEXT,
		area_hectares REAL,
		summary TEXT,
		impact_flag INTEGER NOT NULL DEFAULT 0,
		source_count INTEGER NOT NULL DEFAULT 0,
		backend TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_run ON case_analyses(run_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_case ON case_analyses(case_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON case_analyses(created_at);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		content TEXT NOT NULL,
		source_url TEXT,
		title TEXT,
		query TEXT,
		relevant_site INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (analysis_id) REFERENCES case_analyses(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_findings_analysis ON findings(analysis_id);

	CREATE TABLE IF NOT EXISTS cited_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		query TEXT,
		position INTEGER NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES case_analyses(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_analysis ON cited_sources(analysis_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) InsertRun(run *models.RunRecord) error {
	_, err := c.db.Exec(
		`INSERT INTO analysis_runs (id, backend, cases_total, cases_failed, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Backend, run.CasesTotal, run.CasesFailed, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (c *Client) FinishRun(runID string, casesFailed int, finishedAt time.Time) error {
	_, err := c.db.Exec(
		`UPDATE analysis_runs SET cases_failed = ?, finished_at = ? WHERE id = ?`,
		casesFailed, finishedAt.Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// InsertCaseAnalysis persists one analyzed case with its findings and cited
// sources in a single transaction.
func (c *Client) InsertCaseAnalysis(rec *models.CaseAnalysisRecord, result *models.AnalysisResult) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := sql.NullString{String: rec.RunID, Valid: rec.RunID != ""}

	_, err = tx.Exec(
		`INSERT INTO case_analyses (id, run_id, case_id, holder, region, area_hectares, summary, impact_flag, source_count, backend, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, runID, rec.CaseID, rec.Holder, rec.Region, rec.AreaHectares,
		rec.Summary, boolToInt(rec.ImpactFlag), rec.SourceCount, rec.Backend,
		rec.LatencyMS, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert case analysis: %w", err)
	}

	for _, finding := range result.RawFindings {
		_, err = tx.Exec(
			`INSERT INTO findings (analysis_id, content, source_url, title, query, relevant_site, score)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, finding.Content, finding.Link, finding.Title, finding.Query,
			boolToInt(finding.IsRelevantSite), finding.RelevanceScore,
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	for i, source := range result.Sources {
		_, err = tx.Exec(
			`INSERT INTO cited_sources (analysis_id, url, title, query, position) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, source.URL, source.Title, source.Query, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cited source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (c *Client) ListCaseAnalyses(limit int) ([]models.CaseAnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(
		`SELECT id, COALESCE(run_id, ''), case_id, holder, COALESCE(region, ''), COALESCE(area_hectares, 0),
		        COALESCE(summary, ''), impact_flag, source_count, COALESCE(backend, ''), COALESCE(latency_ms, 0), created_at
		 FROM case_analyses ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query case analyses: %w", err)
	}
	defer rows.Close()

	var records []models.CaseAnalysisRecord
	for rows.Next() {
		rec, err := scanCaseAnalysis(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (c *Client) GetCaseAnalysis(id string) (*models.CaseAnalysisRecord, []models.FindingRecord, []models.CitedSourceRecord, error) {
	row := c.db.QueryRow(
		`SELECT id, COALESCE(run_id, ''), case_id, holder, COALESCE(region, ''), COALESCE(area_hectares, 0),
		        COALESCE(summary, ''), impact_flag, source_count, COALESCE(backend, ''), COALESCE(latency_ms, 0), created_at
		 FROM case_analyses WHERE id = ?`,
		id,
	)

	rec, err := scanCaseAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}

	findings, err := c.findingsFor(id)
	if err != nil {
		return nil, nil, nil, err
	}

	sources, err := c.sourcesFor(id)
	if err != nil {
		return nil, nil, nil, err
	}

	return &rec, findings, sources, nil
}

func (c *Client) findingsFor(analysisID string) ([]models.FindingRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, analysis_id, content, COALESCE(source_url, ''), COALESCE(title, ''), COALESCE(query, ''), relevant_site, score
		 FROM findings WHERE analysis_id = ? ORDER BY score DESC, id ASC`,
		analysisID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []models.FindingRecord
	for rows.Next() {
		var f models.FindingRecord
		var relevant int
		if err := rows.Scan(&f.ID, &f.AnalysisID, &f.Content, &f.SourceURL, &f.Title, &f.Query, &relevant, &f.Score); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.RelevantSite = relevant != 0
		findings = append(findings, f)
	}

	return findings, rows.Err()
}

func (c *Client) sourcesFor(analysisID string) ([]models.CitedSourceRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, analysis_id, url, COALESCE(title, ''), COALESCE(query, ''), position
		 FROM cited_sources WHERE analysis_id = ? ORDER BY position ASC`,
		analysisID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cited sources: %w", err)
	}
	defer rows.Close()

	var sources []models.CitedSourceRecord
	for rows.Next() {
		var s models.CitedSourceRecord
		if err := rows.Scan(&s.ID, &s.AnalysisID, &s.URL, &s.Title, &s.Query, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan cited source: %w", err)
		}
		sources = append(sources, s)
	}

	return sources, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCaseAnalysis(s scanner) (models.CaseAnalysisRecord, error) {
	var rec models.CaseAnalysisRecord
	var impact int
	var createdAt int64

	err := s.Scan(&rec.ID, &rec.RunID, &rec.CaseID, &rec.Holder, &rec.Region, &rec.AreaHectares,
		&rec.Summary, &impact, &rec.SourceCount, &rec.Backend, &rec.LatencyMS, &createdAt)
	if err != nil {
		return rec, err
	}

	rec.ImpactFlag = impact != 0
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
