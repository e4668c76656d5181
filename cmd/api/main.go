package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/analysis"
	"github.com/minewatch/backend/internal/api/handlers"
	"github.com/minewatch/backend/internal/ingestion"
	"github.com/minewatch/backend/internal/llm"
	"github.com/minewatch/backend/internal/metrics"
	"github.com/minewatch/backend/internal/middleware/ratelimit"
	"github.com/minewatch/backend/internal/middleware/security"
	"github.com/minewatch/backend/internal/middleware/validation"
	"github.com/minewatch/backend/internal/search"
	"github.com/minewatch/backend/internal/search/cache"
	"github.com/minewatch/backend/internal/storage/sqlite"
	"github.com/minewatch/backend/internal/vector"
	"github.com/minewatch/backend/pkg/config"
	appLogger "github.com/minewatch/backend/pkg/logger"
)

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

	appLogger.Info("Starting MineWatch API Server")

	metrics.Register()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	backend, backendName := search.Select(context.Background(), cfg.Search)
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
			appLogger.Info("Search response cache enabled")
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

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 30,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	analysisHandler := handlers.NewAnalysisHandler(engine, sqliteClient, backendName)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/analyses", analysisHandler.HandleAnalyze)
	api.Get("/analyses", analysisHandler.ListAnalyses)
	api.Get("/analyses/:id", analysisHandler.GetAnalysis)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"backend": backendName,
			"time":    time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analyses", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
