package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Crawl       CrawlConfig
	Ingest      IngestConfig
	Retrieval   RetrievalConfig
	VectorStore VectorStoreConfig
	Cache       CacheConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	CORSOrigins  []string
	RateLimitRPS float64
	RateBurst    int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds the optional bearer-token settings. An empty JWTSecret
// disables token parsing and callers identify themselves in the request body.
type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	GeminiKey        string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	EmbedProvider    string
	EmbedModel       string
	Temperature      float64
	MaxRetries       int
}

type CrawlConfig struct {
	FirecrawlKey     string
	FirecrawlURL     string
	PageLimit        int
	PollInterval     time.Duration
	Timeout          time.Duration
	FallbackTimeout  time.Duration
	MinContentLength int
}

type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	Concurrency      int
	PagePause        time.Duration
	FailOnZeroChunks bool
	Async            bool
}

type RetrievalConfig struct {
	MatchThreshold float64
	MatchCount     int
	HistoryLimit   int
}

// VectorStoreConfig selects the chunk store backend: "pgvector" or "chromem".
type VectorStoreConfig struct {
	Backend    string
	ChromemDir string
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	l := &loader{}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         l.intVar("SERVER_PORT", 8080),
			CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitRPS: l.floatVar("RATE_LIMIT_RPS", 10),
			RateBurst:    l.intVar("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       l.intVar("DB_MAX_CONNS", 20),
			MinConns:       l.intVar("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       l.intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "gemini"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gemini-1.5-flash"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			EmbedProvider:    getEnv("EMBED_PROVIDER", "gemini"),
			EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
			Temperature:      l.floatVar("LLM_TEMPERATURE", 0.3),
			MaxRetries:       l.intVar("LLM_MAX_RETRIES", 3),
		},
		Crawl: CrawlConfig{
			FirecrawlKey:     getEnv("FIRECRAWL_API_KEY", ""),
			FirecrawlURL:     getEnv("FIRECRAWL_URL", "https://api.firecrawl.dev"),
			PageLimit:        l.intVar("CRAWL_PAGE_LIMIT", 50),
			PollInterval:     l.durationVar("CRAWL_POLL_INTERVAL", 2*time.Second),
			Timeout:          l.durationVar("CRAWL_TIMEOUT", 10*time.Minute),
			FallbackTimeout:  l.durationVar("CRAWL_FALLBACK_TIMEOUT", 15*time.Second),
			MinContentLength: l.intVar("CRAWL_MIN_CONTENT_LENGTH", 50),
		},
		Ingest: IngestConfig{
			ChunkSize:        l.intVar("CHUNK_SIZE", 500),
			ChunkOverlap:     l.intVar("CHUNK_OVERLAP", 100),
			Concurrency:      l.intVar("INGEST_CONCURRENCY", 5),
			PagePause:        l.durationVar("INGEST_PAGE_PAUSE", 250*time.Millisecond),
			FailOnZeroChunks: l.boolVar("INGEST_FAIL_ON_ZERO_CHUNKS", true),
			Async:            l.boolVar("INGEST_ASYNC", false),
		},
		Retrieval: RetrievalConfig{
			MatchThreshold: l.floatVar("MATCH_THRESHOLD", 0.4),
			MatchCount:     l.intVar("MATCH_COUNT", 10),
			HistoryLimit:   l.intVar("HISTORY_LIMIT", 20),
		},
		VectorStore: VectorStoreConfig{
			Backend:    getEnv("VECTOR_BACKEND", "pgvector"),
			ChromemDir: getEnv("CHROMEM_DIR", ""),
		},
		Cache: CacheConfig{
			Enabled: l.boolVar("EMBED_CACHE_ENABLED", true),
			TTL:     l.durationVar("EMBED_CACHE_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(l.errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.LLM.DefaultProvider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "gemini":
		if c.LLM.GeminiKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	}
	if c.LLM.EmbedProvider == "gemini" && c.LLM.GeminiKey == "" && c.LLM.DefaultProvider != "gemini" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be at least 1, got %d", c.Ingest.Concurrency)
	}
	switch c.VectorStore.Backend {
	case "pgvector", "chromem":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorStore.Backend)
	}
	return nil
}

// SlogLevel maps Log.Level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// loader collects parse errors so Load can report every bad variable at once.
type loader struct {
	errs []string
}

func (l *loader) intVar(key string, fallback int) int {
	v, err := getEnvInt(key, fallback)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (l *loader) floatVar(key string, fallback float64) float64 {
	v, err := getEnvFloat(key, fallback)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (l *loader) durationVar(key string, fallback time.Duration) time.Duration {
	v, err := getEnvDuration(key, fallback)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func (l *loader) boolVar(key string, fallback bool) bool {
	v, err := getEnvBool(key, fallback)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
