package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-assistant/internal/ai"
	"knowledge-assistant/internal/config"
	"knowledge-assistant/internal/logger"
	"knowledge-assistant/internal/queue"
	"knowledge-assistant/internal/search"
	"knowledge-assistant/internal/telemetry"
	"knowledge-assistant/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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

	// Initialize Gemini client (embeddings only on this path)
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, ai.Options{
		Model:      cfg.GeminiModel,
		EmbedModel: cfg.EmbeddingsModel,
		Tier:       cfg.GeminiTier,
	})
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

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
	ingestion := services.NewIngestionService(
		services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap),
		geminiClient,
		services.NewEmbeddingCache(cfg.EmbedCacheTTL, cfg.EmbedCacheMax),
		index,
		db.Collection("documents"),
		chunkCache,
		metrics,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"ingest":  6,
				"default": 4,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err.Error())
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskDocumentIngest, processor.ProcessDocumentIngest)

	logger.Info("Starting ingestion worker",
		"redis", redisOpt.Addr,
		"queues", "ingest(6), default(4)")
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker stopped:", err)
	}
}
