package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/analysis"
	"github.com/minewatch/backend/internal/report"
	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/internal/storage/sqlite"
	"github.com/minewatch/backend/pkg/logger"
)

type AnalysisHandler struct {
	engine      *analysis.Engine
	store       *sqlite.Client
	backendName string
}

func NewAnalysisHandler(engine *analysis.Engine, store *sqlite.Client, backendName string) *AnalysisHandler {
	return &AnalysisHandler{
		engine:      engine,
		store:       store,
		backendName: backendName,
	}
}

func (h *AnalysisHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req struct {
		CaseID       string  `json:"case_id"`
		Holder       string  `json:"holder"`
		Region       string  `json:"region"`
		AreaHectares float64 `json:"area_hectares"`
		Question     string  `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CaseID == "" || req.Holder == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "case_id and holder are required",
		})
	}

	start := time.Now()

	result, err := h.engine.Analyze(c.Context(), analysis.Request{
		CaseID:   req.CaseID,
		Holder:   req.Holder,
		Region:   req.Region,
		Question: req.Question,
	})
	if err != nil {
		logger.Error("Failed to analyze case",
			zap.String("case_id", req.CaseID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze case",
		})
	}

	rec := &models.CaseAnalysisRecord{
		ID:           uuid.New().String(),
		CaseID:       req.CaseID,
		Holder:       req.Holder,
		Region:       req.Region,
		AreaHectares: req.AreaHectares,
		Summary:      result.Summary,
		ImpactFlag:   report.HasImpactMention(result.Summary),
		SourceCount:  len(result.Sources),
		Backend:      h.backendName,
		LatencyMS:    int(time.Since(start).Milliseconds()),
		CreatedAt:    time.Now(),
	}

	if err := h.store.InsertCaseAnalysis(rec, result); err != nil {
		logger.Error("Failed to persist analysis", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"id":          rec.ID,
		"case_id":     req.CaseID,
		"holder":      req.Holder,
		"summary":     result.Summary,
		"sources":     sourcesJSON(result.Sources),
		"findings":    findingsJSON(result.RawFindings),
		"impact_flag": rec.ImpactFlag,
		"backend":     h.backendName,
		"latency_ms":  rec.LatencyMS,
	})
}

func (h *AnalysisHandler) ListAnalyses(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	records, err := h.store.ListCaseAnalyses(limit)
	if err != nil {
		logger.Error("Failed to list analyses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list analyses",
		})
	}

	items := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		items = append(items, fiber.Map{
			"id":          rec.ID,
			"case_id":     rec.CaseID,
			"holder":      rec.Holder,
			"region":      rec.Region,
			"impact_flag": rec.ImpactFlag,
			"backend":     rec.Backend,
			"created_at":  rec.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"analyses": items,
	})
}

func (h *AnalysisHandler) GetAnalysis(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	rec, findings, sources, err := h.store.GetCaseAnalysis(id)
	if err != nil {
		logger.Error("Failed to fetch analysis", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch analysis",
		})
	}
	if rec == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Analysis not found",
		})
	}

	findingItems := make([]fiber.Map, 0, len(findings))
	for _, f := range findings {
		findingItems = append(findingItems, fiber.Map{
			"content":       f.Content,
			"source_url":    f.SourceURL,
			"title":         f.Title,
			"query":         f.Query,
			"relevant_site": f.RelevantSite,
			"score":         f.Score,
		})
	}

	sourceItems := make([]fiber.Map, 0, len(sources))
	for _, s := range sources {
		sourceItems = append(sourceItems, fiber.Map{
			"url":   s.URL,
			"title": s.Title,
			"query": s.Query,
		})
	}

	return c.JSON(fiber.Map{
		"id":            rec.ID,
		"case_id":       rec.CaseID,
		"holder":        rec.Holder,
		"region":        rec.Region,
		"area_hectares": rec.AreaHectares,
		"summary":       rec.Summary,
		"impact_flag":   rec.ImpactFlag,
		"backend":       rec.Backend,
		"latency_ms":    rec.LatencyMS,
		"created_at":    rec.CreatedAt,
		"findings":      findingItems,
		"sources":       sourceItems,
	})
}

func sourcesJSON(sources []models.SourceRef) []fiber.Map {
	items := make([]fiber.Map, 0, len(sources))
	for _, s := range sources {
		items = append(items, fiber.Map{
			"url":   s.URL,
			"title": s.Title,
			"query": s.Query,
		})
	}
	return items
}

func findingsJSON(findings []models.SearchResult) []fiber.Map {
	items := make([]fiber.Map, 0, len(findings))
	for _, f := range findings {
		items = append(items, fiber.Map{
			"content":       f.Content,
			"link":          f.Link,
			"title":         f.Title,
			"query":         f.Query,
			"relevant_site": f.IsRelevantSite,
			"score":         f.RelevanceScore,
		})
	}
	return items
}
