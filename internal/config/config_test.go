package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"LLM_PROVIDER", "LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
	"LLM_TIMEOUT", "LLM_MAX_RETRIES", "LLM_RATE_LIMIT",
	"LLM_FALLBACK_ENABLED", "LLM_CONFIDENCE_THRESHOLD",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
	"DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION", "QDRANT_VECTOR_SIZE",
	"SEARCH_TIMEOUT", "SEARCH_MAX_RETRIES", "DOC_TYPE", "API_PORT",
	"LOG_LEVEL", "LOG_FORMAT", "RETRIEVAL_CONFIG",
}

// isolateEnv clears every config variable, moves into an empty directory so no
// .env file is picked up, and restores both when the test ends.
func isolateEnv(t *testing.T) {
	t.Helper()

	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}

	originalWd, _ := os.Getwd()
	_ = os.Chdir(t.TempDir()) // Ignore error - test will fail if this doesn't work

	t.Cleanup(func() {
		_ = os.Chdir(originalWd) // Ignore error in cleanup
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with all required fields",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.QdrantVectorSize == 768
			},
		},
		{
			name:     "missing QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "negative QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "-1")
			},
			wantErr: true,
		},
		{
			name: "default values for optional fields",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMProvider == ProviderLlamaCPP &&
					cfg.LLMBaseURL == "http://localhost:8080" &&
					cfg.LLMModelName == "Llama-3.1-8B-Instruct" &&
					cfg.LLMAPIKey == "dummy-key" &&
					cfg.LLMTimeout == 20*time.Second &&
					cfg.LLMMaxRetries == 1 &&
					cfg.LLMRateLimit == 0 &&
					cfg.LLMFallbackEnabled &&
					cfg.LLMConfidenceThreshold == 0.6 &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.EmbeddingModelName == "granite-embedding-278m-multilingual" &&
					cfg.DBPath == "./data/mailrag.db" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.QdrantCollection == "emails" &&
					cfg.SearchTimeout == 10*time.Second &&
					cfg.SearchMaxRetries == 1 &&
					cfg.DocType == "email" &&
					cfg.APIPort == "9000" &&
					cfg.LogLevel == "info" &&
					cfg.LogFormat == "text" &&
					cfg.Tuning == DefaultTuning()
			},
		},
		{
			name: "custom optional values",
			setupEnv: func(t *testing.T) {
				tmpDir := t.TempDir()
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_PROVIDER", "OpenAI")
				setEnv("LLM_BASE_URL", "http://custom:9090")
				setEnv("LLM_MODEL", "custom-model")
				setEnv("LLM_TIMEOUT", "5s")
				setEnv("LLM_MAX_RETRIES", "0")
				setEnv("LLM_RATE_LIMIT", "2.5")
				setEnv("LLM_FALLBACK_ENABLED", "false")
				setEnv("SEARCH_TIMEOUT", "1500ms")
				setEnv("DOC_TYPE", "newsletter")
				setEnv("LOG_FORMAT", "JSON")
				customDBPath := filepath.Join(tmpDir, "custom", "db.db")
				setEnv("DB_PATH", customDBPath)
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMProvider == ProviderOpenAI &&
					cfg.LLMBaseURL == "http://custom:9090" &&
					cfg.LLMModelName == "custom-model" &&
					cfg.LLMTimeout == 5*time.Second &&
					cfg.LLMMaxRetries == 0 &&
					cfg.LLMRateLimit == 2.5 &&
					!cfg.LLMFallbackEnabled &&
					cfg.SearchTimeout == 1500*time.Millisecond &&
					cfg.DocType == "newsletter" &&
					cfg.LogFormat == "json" &&
					filepath.Base(cfg.DBPath) == "db.db" // Just check filename, path will vary with temp dir
			},
		},
		{
			name: "embedding has separate defaults from LLM",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_BASE_URL", "http://custom:9090")
				setEnv("LLM_MODEL", "custom-model")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				// Embeddings should have their own defaults, not inherit from LLM
				return cfg.LLMBaseURL == "http://custom:9090" &&
					cfg.LLMModelName == "custom-model" &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.EmbeddingModelName == "granite-embedding-278m-multilingual"
			},
		},
		{
			name: "unknown LLM_PROVIDER",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_PROVIDER", "ollama")
			},
			wantErr: true,
		},
		{
			name: "LLM_MAX_RETRIES above one",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_MAX_RETRIES", "3")
			},
			wantErr: true,
		},
		{
			name: "negative SEARCH_MAX_RETRIES",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("SEARCH_MAX_RETRIES", "-1")
			},
			wantErr: true,
		},
		{
			name: "invalid LLM_TIMEOUT",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_TIMEOUT", "20")
			},
			wantErr: true,
		},
		{
			name: "negative LLM_RATE_LIMIT",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_RATE_LIMIT", "-1")
			},
			wantErr: true,
		},
		{
			name: "invalid LLM_FALLBACK_ENABLED",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_FALLBACK_ENABLED", "sometimes")
			},
			wantErr: true,
		},
		{
			name: "LLM_CONFIDENCE_THRESHOLD out of range",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LLM_CONFIDENCE_THRESHOLD", "1.5")
			},
			wantErr: true,
		},
		{
			name: "unknown LOG_FORMAT",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LOG_FORMAT", "xml")
			},
			wantErr: true,
		},
		{
			name: "retrieval config file",
			setupEnv: func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "retrieval.yaml")
				if err := os.WriteFile(path, []byte("seed_k: 25\ntop_threads: 5\n"), 0644); err != nil {
					t.Fatalf("failed to write retrieval config: %v", err)
				}
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RETRIEVAL_CONFIG", path)
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.Tuning.SeedK == 25 &&
					cfg.Tuning.TopThreads == 5 &&
					cfg.Tuning.DedupThreshold == 0.8
			},
		},
		{
			name: "missing retrieval config file",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("RETRIEVAL_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	isolateEnv(t)

	// Use a temporary directory for testing
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test", "db.db")

	setEnv("QDRANT_VECTOR_SIZE", "768")
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Check that directory was created
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}

	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	isolateEnv(t)

	if err := os.WriteFile(".env", []byte("QDRANT_VECTOR_SIZE=384\nQDRANT_COLLECTION=mailbox\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	// godotenv exports into the process environment
	t.Cleanup(func() {
		unsetEnv("QDRANT_VECTOR_SIZE")
		unsetEnv("QDRANT_COLLECTION")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QdrantVectorSize != 384 {
		t.Errorf("QdrantVectorSize = %d, want 384", cfg.QdrantVectorSize)
	}
	if cfg.QdrantCollection != "mailbox" {
		t.Errorf("QdrantCollection = %q, want mailbox", cfg.QdrantCollection)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name: "env var set",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "set-value")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name: "env var not set",
			setupEnv: func() {
				unsetEnv("TEST_ENV_VAR")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name: "empty env var uses default",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestLoadTuning(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    func(Tuning) bool
		wantErr string
	}{
		{
			name:    "empty file keeps defaults",
			content: "",
			want:    func(tu Tuning) bool { return tu == DefaultTuning() },
		},
		{
			name:    "partial override",
			content: "dedup_threshold: 0.9\nover_fetch_cap: 50\ndefault_max_tokens: 1200\n",
			want: func(tu Tuning) bool {
				return tu.DedupThreshold == 0.9 &&
					tu.OverFetchCap == 50 &&
					tu.DefaultMaxTokens == 1200 &&
					tu.SeedK == 10
			},
		},
		{
			name:    "unknown key",
			content: "seed: 3\n",
			wantErr: "failed to parse",
		},
		{
			name:    "out of range",
			content: "low_confidence_threshold: 2\n",
			wantErr: "low_confidence_threshold",
		},
		{
			name:    "zero low confidence threshold",
			content: "low_confidence_threshold: 0\n",
			wantErr: "low_confidence_threshold",
		},
		{
			name:    "zero default max tokens",
			content: "default_max_tokens: 0\n",
			wantErr: "default_max_tokens",
		},
		{
			name:    "zero seed",
			content: "seed_k: 0\n",
			wantErr: "seed_k",
		},
		{
			name:    "malformed yaml",
			content: "top_threads: [\n",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "retrieval.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}

			got, err := LoadTuning(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("LoadTuning() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadTuning() unexpected error: %v", err)
			}
			if !tt.want(got) {
				t.Errorf("LoadTuning() = %+v", got)
			}
		})
	}
}
