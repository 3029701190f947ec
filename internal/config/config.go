package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderLlamaCPP = "llamacpp"
	ProviderOpenAI   = "openai"
)

// Config holds all configuration for the application.
type Config struct {
	LLMProvider            string
	LLMBaseURL             string
	LLMModelName           string
	LLMAPIKey              string
	LLMTimeout             time.Duration
	LLMMaxRetries          int
	LLMRateLimit           float64 // Requests per second, 0 disables
	LLMFallbackEnabled     bool
	LLMConfidenceThreshold float64
	EmbeddingBaseURL       string
	EmbeddingModelName     string
	DBPath                 string
	QdrantURL              string
	QdrantCollection       string
	QdrantVectorSize       int
	SearchTimeout          time.Duration
	SearchMaxRetries       int
	DocType                string
	APIPort                string
	LogLevel               string
	LogFormat              string
	RetrievalConfigPath    string
	Tuning                 Tuning
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	// Walk up to find a project-level .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", ProviderLlamaCPP)),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:        getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:           getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:    getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName:  getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:              getEnv("DB_PATH", "./data/mailrag.db"),
		QdrantURL:           getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:    getEnv("QDRANT_COLLECTION", "emails"),
		DocType:             getEnv("DOC_TYPE", "email"),
		APIPort:             getEnv("API_PORT", "9000"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		RetrievalConfigPath: getEnv("RETRIEVAL_CONFIG", ""),
	}

	switch cfg.LLMProvider {
	case ProviderLlamaCPP, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderLlamaCPP, ProviderOpenAI, cfg.LLMProvider)
	}

	// QDRANT_VECTOR_SIZE must match the output size of the embeddings model.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = getEnvDuration("SEARCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMMaxRetries, err = getEnvRetries("LLM_MAX_RETRIES", 1); err != nil {
		return nil, err
	}
	if cfg.SearchMaxRetries, err = getEnvRetries("SEARCH_MAX_RETRIES", 1); err != nil {
		return nil, err
	}
	if cfg.LLMRateLimit, err = getEnvFloat("LLM_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.LLMRateLimit < 0 {
		return nil, fmt.Errorf("LLM_RATE_LIMIT must not be negative")
	}
	if cfg.LLMFallbackEnabled, err = getEnvBool("LLM_FALLBACK_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.LLMConfidenceThreshold, err = getEnvFloat("LLM_CONFIDENCE_THRESHOLD", 0.6); err != nil {
		return nil, err
	}
	if cfg.LLMConfidenceThreshold < 0 || cfg.LLMConfidenceThreshold > 1 {
		return nil, fmt.Errorf("LLM_CONFIDENCE_THRESHOLD must be between 0 and 1")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	cfg.Tuning = DefaultTuning()
	if cfg.RetrievalConfigPath != "" {
		tuning, err := LoadTuning(cfg.RetrievalConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
	}

	// Create ./data directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 10s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

// getEnvRetries parses a retry budget, which is limited to 0 or 1.
func getEnvRetries(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%s must be 0 or 1, got %d", key, v)
	}
	return v, nil
}
