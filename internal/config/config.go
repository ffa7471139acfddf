package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiTier      string
	EmbeddingsModel string

	// Document store read during ingestion (CSV, XLSX, PDF files).
	DataDir        string
	ChunkSize      int
	ChunkOverlap   int
	RescanInterval time.Duration

	// Retrieval tuning. MinScore assumes cosine similarity: higher means
	// more similar, never a distance.
	TopK             int
	MinScore         float64
	VectorDimensions int

	// MongoDB Atlas Vector Search. When disabled the index falls back to
	// an in-process cosine scan over the chunks collection.
	VectorSearchEnabled bool
	VectorIndexName     string

	// Caches.
	EmbedCacheTTL     time.Duration
	EmbedCacheMax     int
	QueryCacheMax     int
	ChunkCacheTTL     time.Duration
	ChunkCacheEnabled bool

	// Per-user request limiting (in-process sliding window).
	RateLimitReqs   int
	RateLimitWindow time.Duration

	// Answer shaping.
	MaxQuestionLen        int
	Tone                  string
	GenerationTimeout     time.Duration
	GenerationConcurrency int

	// Web-search fallback.
	WebSearchEnabled bool
	WebSearchURL     string
	WebSearchTimeout time.Duration
	WebSearchResults int

	// Redis Configuration (asynq broker + shared chunk cache).
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Observability.
	OTLPEndpoint   string
	TracingEnabled bool
	LogLevel       string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_assistant"),
		DBName:   getEnv("DB_NAME", "knowledge_assistant"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		DataDir:        getEnv("DATA_DIR", "./data"),
		ChunkSize:      getEnvInt("MAX_CHUNK_SIZE", 500),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 50),
		RescanInterval: getEnvDuration("RESCAN_INTERVAL", 15*time.Minute),

		TopK:             getEnvInt("TOP_K", 5),
		MinScore:         getEnvFloat64("MIN_SCORE", 0.65),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		VectorSearchEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "chunks_vector"),

		EmbedCacheTTL:     getEnvDuration("EMBED_CACHE_TTL", time.Hour),
		EmbedCacheMax:     getEnvInt("EMBED_CACHE_MAX", 1000),
		QueryCacheMax:     getEnvInt("QUERY_CACHE_MAX", 128),
		ChunkCacheTTL:     getEnvDuration("CHUNK_CACHE_TTL", 24*time.Hour),
		ChunkCacheEnabled: getEnvBool("CHUNK_CACHE_ENABLED", false),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		MaxQuestionLen:        getEnvInt("MAX_QUESTION_LEN", 500),
		Tone:                  getEnv("ASSISTANT_TONE", "friendly and concise"),
		GenerationTimeout:     getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		GenerationConcurrency: getEnvInt("GENERATION_CONCURRENCY", 4),

		WebSearchEnabled: getEnvBool("WEB_SEARCH_ENABLED", true),
		WebSearchURL:     getEnv("WEB_SEARCH_URL", "https://html.duckduckgo.com/html/"),
		WebSearchTimeout: getEnvDuration("WEB_SEARCH_TIMEOUT", 8*time.Second),
		WebSearchResults: getEnvInt("WEB_SEARCH_RESULTS", 3),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
