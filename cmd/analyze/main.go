package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/analysis"
	"github.com/minewatch/backend/internal/dataset"
	"github.com/minewatch/backend/internal/evaluation"
	"github.com/minewatch/backend/internal/ingestion"
	"github.com/minewatch/backend/internal/llm"
	"github.com/minewatch/backend/internal/metrics"
	"github.com/minewatch/backend/internal/report"
	"github.com/minewatch/backend/internal/search"
	"github.com/minewatch/backend/internal/search/cache"
	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/internal/storage/sqlite"
	"github.com/minewatch/backend/internal/vector"
	"github.com/minewatch/backend/pkg/config"
	appLogger "github.com/minewatch/backend/pkg/logger"
)

// Question used for the holder-profile pass, broader than the per-case one.
const holderQuestionFmt = `"%s" mineradora perfil ambiental conflitos comunidades indígenas`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting MineWatch batch analysis")

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cases, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		appLogger.Fatal("Failed to load dataset", zap.String("path", cfg.Dataset.Path), zap.Error(err))
	}
	appLogger.Info("Dataset loaded", zap.Int("cases", len(cases)))

	selected := dataset.TopByArea(cases, cfg.Analysis.TopCases)
	appLogger.Info("Cases selected by area", zap.Int("selected", len(selected)))

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	backend, backendName := search.Select(ctx, cfg.Search)
	appLogger.Info("Search backend selected", zap.String("backend", backendName))

	runner := search.NewRunner(
		backend,
		cfg.Analysis.TrustedDomains,
		time.Duration(cfg.Search.MinDelayMS)*time.Millisecond,
		time.Duration(cfg.Search.MaxDelayMS)*time.Millisecond,
		time.Duration(cfg.Search.CooldownSec)*time.Second,
	)

	if cfg.Search.CacheEnabled {
		cacheClient, err := cache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Failed to connect to Redis, search cache disabled", zap.Error(err))
		} else {
			defer cacheClient.Close()
			runner = runner.WithCache(cacheClient, time.Duration(cfg.Search.CacheTTLMin)*time.Minute)
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	var provider vector.Provider
	if cfg.Vector.Provider == "milvus" {
		milvusProvider, err := vector.NewMilvusProvider(cfg.Vector.MilvusEndpoint, cfg.LLM.EmbeddingDim)
		if err != nil {
			appLogger.Fatal("Failed to connect to Milvus", zap.Error(err))
		}
		defer milvusProvider.Close()
		provider = milvusProvider
	} else {
		provider = vector.NewMemoryProvider()
	}

	assembler := ingestion.NewAssembler(cfg.Analysis.ChunkSize, cfg.Analysis.ChunkOverlap)

	engine := analysis.NewEngine(
		runner,
		assembler,
		llmClient,
		provider,
		cfg.Analysis.TrustedDomains,
		cfg.Analysis.RiskKeywords,
		cfg.Analysis.TopK,
		cfg.Analysis.MaxFindings,
	)

	run := &models.RunRecord{
		ID:         uuid.New().String(),
		Backend:    backendName,
		CasesTotal: len(selected),
		StartedAt:  time.Now(),
	}
	if err := sqliteClient.InsertRun(run); err != nil {
		appLogger.Warn("Failed to record run", zap.Error(err))
	}

	var analyzed []report.CaseAnalysis
	failed := 0

	for i, c := range selected {
		appLogger.Info("Analyzing case",
			zap.Int("position", i+1),
			zap.Int("total", len(selected)),
			zap.String("case_id", c.CaseID),
			zap.String("holder", c.Holder),
		)

		start := time.Now()

		result, err := engine.Analyze(ctx, analysis.Request{
			CaseID: c.CaseID,
			Holder: c.Holder,
			Region: c.Region,
		})
		if err != nil {
			appLogger.Warn("Case analysis failed, continuing",
				zap.String("case_id", c.CaseID),
				zap.Error(err),
			)
			failed++
			continue
		}

		analyzed = append(analyzed, report.CaseAnalysis{Case: c, Result: result})

		rec := &models.CaseAnalysisRecord{
			ID:           uuid.New().String(),
			RunID:        run.ID,
			CaseID:       c.CaseID,
			Holder:       c.Holder,
			Region:       c.Region,
			AreaHectares: c.AreaHectares,
			Summary:      result.Summary,
			ImpactFlag:   report.HasImpactMention(result.Summary),
			SourceCount:  len(result.Sources),
			Backend:      backendName,
			LatencyMS:    int(time.Since(start).Milliseconds()),
			CreatedAt:    time.Now(),
		}
		if err := sqliteClient.InsertCaseAnalysis(rec, result); err != nil {
			appLogger.Warn("Failed to persist case analysis", zap.String("case_id", c.CaseID), zap.Error(err))
		}
	}

	var profiles []report.HolderProfile
	for _, holder := range dataset.RecurringHolders(selected) {
		appLogger.Info("Profiling recurring holder", zap.String("holder", holder))

		result, err := engine.Analyze(ctx, analysis.Request{
			CaseID:   "Perfil Empresarial",
			Holder:   holder,
			Region:   "Brasil",
			Question: fmt.Sprintf(holderQuestionFmt, holder),
		})
		if err != nil {
			appLogger.Warn("Holder profiling failed, continuing", zap.String("holder", holder), zap.Error(err))
			continue
		}
		profiles = append(profiles, report.HolderProfile{Holder: holder, Result: result})
	}

	if err := sqliteClient.FinishRun(run.ID, failed, time.Now()); err != nil {
		appLogger.Warn("Failed to finish run record", zap.Error(err))
	}

	if err := writeOutputs(cfg.Output.Dir, backendName, analyzed, profiles); err != nil {
		appLogger.Fatal("Failed to write outputs", zap.Error(err))
	}

	quality := evaluation.Evaluate(analyzed)
	if err := os.WriteFile(filepath.Join(cfg.Output.Dir, "qualidade_execucao.txt"), []byte(quality.String()), 0o644); err != nil {
		appLogger.Warn("Failed to write quality report", zap.Error(err))
	}

	appLogger.Info("Batch analysis finished",
		zap.Int("analyzed", len(analyzed)),
		zap.Int("failed", failed),
		zap.Int("profiles", len(profiles)),
		zap.String("output_dir", cfg.Output.Dir),
	)
}

func writeOutputs(dir, backendName string, analyzed []report.CaseAnalysis, profiles []report.HolderProfile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	assembler := report.NewAssembler(backendName)

	markdown := assembler.Markdown(analyzed, profiles)
	if err := os.WriteFile(filepath.Join(dir, "relatorio_analise.md"), []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	summaryFile, err := os.Create(filepath.Join(dir, "resumo_analises.csv"))
	if err != nil {
		return fmt.Errorf("failed to create summary CSV: %w", err)
	}
	defer summaryFile.Close()
	if err := assembler.WriteSummaryCSV(summaryFile, analyzed); err != nil {
		return fmt.Errorf("failed to write summary CSV: %w", err)
	}

	findingsFile, err := os.Create(filepath.Join(dir, "descobertas_detalhadas.csv"))
	if err != nil {
		return fmt.Errorf("failed to create findings CSV: %w", err)
	}
	defer findingsFile.Close()
	if err := assembler.WriteFindingsCSV(findingsFile, analyzed); err != nil {
		return fmt.Errorf("failed to write findings CSV: %w", err)
	}

	return nil
}
