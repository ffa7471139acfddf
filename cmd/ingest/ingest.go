package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-assistant/internal/ai"
	"knowledge-assistant/internal/config"
	"knowledge-assistant/internal/logger"
	"knowledge-assistant/internal/queue"
	"knowledge-assistant/internal/search"
	"knowledge-assistant/services"
)

// One-shot ingestion of the data directory. With -enqueue the files are
// handed to the asynq worker instead of being processed inline.
func main() {
	enqueue := flag.Bool("enqueue", false, "enqueue files for the worker instead of ingesting inline")
	dir := flag.String("dir", "", "directory to ingest (defaults to DATA_DIR)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	dataDir := cfg.DataDir
	if *dir != "" {
		dataDir = *dir
	}

	if *enqueue {
		enqueueDir(cfg, dataDir)
		return
	}

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

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, ai.Options{
		EmbedModel: cfg.EmbeddingsModel,
		Tier:       cfg.GeminiTier,
	})
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	var chunkCache *services.ChunkCacheService
	if cfg.ChunkCacheEnabled {
		if redisClient, err := config.NewRedisClient(cfg); err == nil {
			defer redisClient.Close()
			chunkCache = services.NewChunkCacheService(redisClient, cfg.ChunkCacheTTL)
		}
	}

	ingestion := services.NewIngestionService(
		services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap),
		geminiClient,
		services.NewEmbeddingCache(cfg.EmbedCacheTTL, cfg.EmbedCacheMax),
		search.NewMongoIndex(db, cfg.VectorIndexName, cfg.VectorSearchEnabled),
		db.Collection("documents"),
		chunkCache,
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	n, err := ingestion.IngestDir(ctx, dataDir)
	if err != nil {
		log.Fatal("Ingest failed:", err)
	}
	logger.Info("Ingest complete", "dir", dataDir, "chunks", n)
}

// enqueueDir submits one ingest task per supported file.
func enqueueDir(cfg *config.Config, dataDir string) {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	paths, err := queue.ScanIngestible(dataDir)
	if err != nil {
		log.Fatal("Failed to scan directory:", err)
	}
	for _, p := range paths {
		task, err := queue.NewDocumentIngestTask(p.Path, p.Source)
		if err != nil {
			log.Fatal("Failed to build task:", err)
		}
		info, err := client.Enqueue(task)
		if err != nil {
			log.Fatal("Failed to enqueue task:", err)
		}
		logger.Info("Enqueued ingest task", "source", p.Source, "task_id", info.ID)
	}
	logger.Info("Enqueued directory", "dir", dataDir, "files", len(paths))
}
