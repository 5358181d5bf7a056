package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"searchcore/internal/cache"
	"searchcore/internal/config"
	"searchcore/internal/embedding"
	"searchcore/internal/filter"
	"searchcore/internal/handler"
	"searchcore/internal/interpreter"
	"searchcore/internal/llm"
	"searchcore/internal/metrics"
	"searchcore/internal/rank"
	"searchcore/internal/reindex"
	"searchcore/internal/repository"
	"searchcore/internal/search"
	"searchcore/internal/vector"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("hybrid property search engine",
		"version", Version, "build_time", BuildTime, "git_commit", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.GinMode)

	// Storage backends. With no database configured everything runs
	// in-process, which is the mode integration tests and local
	// development use.
	var (
		repo        repository.PropertyRepository
		sink        repository.FeedbackSink
		filterEng   filter.Engine
		vectorStore vector.Store
	)
	if cfg.UsePostgres() {
		pg, err := repository.NewPostgresRepository(
			cfg.PostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
			logger,
		)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		repo = pg
		sink = pg
		filterEng = filter.NewPostgresEngine(pg.DB())
		vectorStore = vector.NewPostgresStore(pg.DB(), cfg.OpenAI.EmbeddingDimensions)
		logger.Info("connected to PostgreSQL")
	} else {
		mem := repository.NewMemoryRepository(logger)
		repo = mem
		sink = mem
		filterEng = filter.NewMemoryEngine(mem)
		vectorStore = vector.NewMemoryStore(cfg.OpenAI.EmbeddingDimensions)
		logger.Warn("no database configured, using in-memory backends")
	}

	// LLM capabilities. Absent an API key the engine still serves
	// filter-only search.
	var (
		extractor llm.Extractor
		embedder  llm.Embedder
	)
	if cfg.OpenAI.Enabled {
		client := llm.NewOpenAIClient(&cfg.OpenAI, logger)
		extractor = client
		embedder = client
		logger.Info("OpenAI-compatible provider initialized",
			"api_base", cfg.OpenAI.APIBase,
			"chat_model", cfg.OpenAI.ChatModel,
			"embedding_model", cfg.OpenAI.EmbeddingModel)
	} else {
		logger.Warn("no OPENAI_API_KEY set, intent extraction and semantic search disabled")
	}

	interp := interpreter.New(extractor, interpreter.Config{
		Budget:          cfg.Search.IntentBudget,
		MinConfidence:   cfg.Search.IntentMinConfidence,
		BreakerFailures: cfg.Breaker.ConsecutiveFailures,
		BreakerCooldown: cfg.Breaker.Cooldown,
	}, logger)

	var (
		embedSvc  *embedding.Service
		reindexer *reindex.Reindexer
	)
	if embedder != nil {
		embedSvc, err = embedding.NewService(embedder, embedding.Options{
			Dimensions:     cfg.OpenAI.EmbeddingDimensions,
			BatchSize:      cfg.Embedding.BatchSize,
			PoolSize:       cfg.Embedding.PoolSize,
			MaxRetries:     cfg.Embedding.MaxRetries,
			RetryBaseDelay: cfg.Embedding.RetryBaseDelay,
			Logger:         logger,
		})
		if err != nil {
			logger.Error("failed to create embedding service", "error", err)
			os.Exit(1)
		}
		defer embedSvc.Close()
		reindexer = reindex.New(repo, embedSvc, vectorStore, logger)
	}

	collector := metrics.NewPrometheusCollector()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		backend, err := cache.NewInMemoryBackend()
		if err != nil {
			logger.Error("failed to open result cache", "error", err)
			os.Exit(1)
		}
		defer backend.Close()
		resultCache = cache.New(backend, cfg.Cache.TTL, cfg.Cache.TTLJitter, logger)
		go resultCache.Run(rootCtx, repo.Changes())
	}

	orchestrator := search.New(search.Options{
		Interpreter: interp,
		Embeds:      embedSvc,
		Filters:     filterEng,
		Vectors:     vectorStore,
		Repo:        repo,
		Sink:        sink,
		Fuser: rank.NewFuser(rank.Weights{
			Filter:     cfg.Ranking.WeightFilter,
			Similarity: cfg.Ranking.WeightSimilarity,
		}),
		Cache:   resultCache,
		Metrics: collector,
		Config: search.Config{
			RequestBudget:   cfg.Search.RequestBudget,
			EmbedBudget:     cfg.Search.EmbedBudget,
			VectorBudget:    cfg.Search.VectorBudget,
			TopK:            cfg.Vector.TopK,
			MinSimilarity:   cfg.Vector.MinSimilarity,
			CandidateCutoff: cfg.Vector.CandidateCutoff,
		},
		Logger: logger,
	})

	searchHandler := handler.NewSearchHandler(orchestrator, repo)
	feedbackHandler := handler.NewFeedbackHandler(orchestrator)
	reindexHandler := handler.NewReindexHandler(reindexer)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "property-search-engine",
			"version": Version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		collector.Registry(), promhttp.HandlerOpts{},
	)))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/properties/:id", searchHandler.GetProperty)
		apiV1.POST("/reindex", reindexHandler.Run)
		apiV1.POST("/feedback", feedbackHandler.Record)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("server stopped")
}
