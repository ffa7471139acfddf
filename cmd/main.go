package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"knowledge-assistant/internal/ai"
	"knowledge-assistant/internal/config"
	"knowledge-assistant/internal/ingest"
	"knowledge-assistant/internal/logger"
	"knowledge-assistant/internal/search"
	"knowledge-assistant/internal/telemetry"
	"knowledge-assistant/models"
	"knowledge-assistant/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("knowledge-assistant", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err.Error())
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err.Error())
		metrics = nil
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, ai.Options{
		Model:       cfg.GeminiModel,
		EmbedModel:  cfg.EmbeddingsModel,
		Tier:        cfg.GeminiTier,
		Concurrency: cfg.GenerationConcurrency,
	})
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	// Shared Redis chunk cache is optional; the engine runs fine
	// without it.
	var chunkCache *services.ChunkCacheService
	if cfg.ChunkCacheEnabled {
		redisClient, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis cache disabled", "error", err.Error())
		} else {
			defer redisClient.Close()
			chunkCache = services.NewChunkCacheService(redisClient, cfg.ChunkCacheTTL)
		}
	}

	index := search.NewMongoIndex(db, cfg.VectorIndexName, cfg.VectorSearchEnabled)
	embedCache := services.NewEmbeddingCache(cfg.EmbedCacheTTL, cfg.EmbedCacheMax)
	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)

	ingestion := services.NewIngestionService(
		chunker, geminiClient, embedCache, index,
		db.Collection("documents"), chunkCache, metrics)

	// Index the data directory before serving questions.
	if _, err := os.Stat(cfg.DataDir); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		n, err := ingestion.IngestDir(ctx, cfg.DataDir)
		cancel()
		if err != nil {
			logger.Error("Initial ingest failed", "error", err.Error())
		} else if n > 0 {
			logger.Info("Initial ingest complete", "chunks", n)
		}
	}

	queryCache := services.NewQueryCache(cfg.QueryCacheMax)

	// Periodic rescan picks up files added while the session runs.
	// A rescan that indexed new chunks drops the in-process query
	// cache, matching the Redis invalidation IngestDir already does.
	scheduler := ingest.NewScheduler()
	if err := scheduler.ScheduleRescan(cfg.RescanInterval, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		n, err := ingestion.IngestDir(ctx, cfg.DataDir)
		if n > 0 {
			queryCache.Reset()
		}
		return err
	}); err != nil {
		logger.Warn("Rescan scheduling failed", "error", err.Error())
	}
	scheduler.Start()
	defer scheduler.Stop()

	retrieval := services.NewRetrievalService(
		geminiClient, index, embedCache,
		queryCache,
		chunkCache, metrics, cfg.MinScore, cfg.TopK)

	var searcher services.WebSearcher
	if cfg.WebSearchEnabled {
		searcher = services.NewWebSearchService(cfg.WebSearchURL, cfg.WebSearchTimeout, cfg.WebSearchResults)
	}

	assistant := services.NewAssistantService(
		services.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitWindow),
		services.NewIntentService(),
		retrieval,
		searcher,
		geminiClient,
		services.NewPostProcessor(cfg.MaxQuestionLen),
		metrics,
		cfg.TopK,
		cfg.Tone,
		cfg.GenerationTimeout,
	)

	runREPL(assistant)
}

// runREPL is the interactive loop: one anonymous user per session,
// farewell intents end it.
func runREPL(assistant *services.AssistantService) {
	userID := uuid.New().String()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Assistant:", services.ResponseWelcome)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\nAssistant:", services.ResponseFarewell)
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		result := assistant.Answer(context.Background(), question, userID)
		fmt.Println("Assistant:", result.Answer)
		if result.Intent == models.IntentFarewell {
			return
		}
	}
}
