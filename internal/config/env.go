package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	VectorBackend string // "qdrant" or "pgvector"
	QdrantURL     string
	QdrantAPIKey  string

	ChunkerURL        string
	ChunkerAPIKey     string
	MaxTokensPerChunk int
	Tokenizer         string
	MergePeers        bool

	EmbedProvider string // "openai" or "gemini"
	EmbedBaseURL  string
	EmbedAPIKey   string
	GeminiAPIKey  string
	EmbedModel    string
	EmbedDim      int

	Distance      string
	ScoreMin      float64
	CharsPerToken int

	Port string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "vectora-docs"),

		VectorBackend: getEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:     getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:  getEnv("QDRANT_API_KEY", ""),

		ChunkerURL:        getEnv("CHUNKER_URL", "http://localhost:9090"),
		ChunkerAPIKey:     getEnv("CHUNKER_API_KEY", ""),
		MaxTokensPerChunk: getEnvInt("MAX_TOKENS_PER_CHUNK", 512),
		Tokenizer:         getEnv("CHUNK_TOKENIZER", "cl100k_base"),
		MergePeers:        getEnvBool("CHUNK_MERGE_PEERS", true),

		EmbedProvider: getEnv("EMBED_PROVIDER", "openai"),
		EmbedBaseURL:  getEnv("EMBED_BASE_URL", "https://api.openai.com/v1"),
		EmbedAPIKey:   getEnv("EMBED_API_KEY", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),

		Distance:      getEnv("VECTOR_DISTANCE", "cosine"),
		ScoreMin:      getEnvFloat("SAMPLE_SCORE_MIN", 0.35),
		CharsPerToken: getEnvInt("SAMPLE_CHARS_PER_TOKEN", 4),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
