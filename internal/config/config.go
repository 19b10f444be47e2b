package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the propchat server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Store     StoreConfig
	Tenancy   TenancyConfig
	Catalog   CatalogConfig
	AI        AIConfig
	Chat      ChatConfig
	Usage     UsageConfig
	Security  SecurityConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// AdminKey, when set, is registered at startup as an admin-scoped API key.
	AdminKey string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type StoreConfig struct {
	Backend string
}

type TenancyConfig struct {
	Mode          string
	DefaultTenant string
}

// Single reports whether every request is served from DefaultTenant.
func (t TenancyConfig) Single() bool { return t.Mode == "single" }

type CatalogConfig struct {
	Source      string
	TTL         time.Duration
	LocalDir    string
	ObjectStore ObjectStoreConfig
	Mongo       MongoConfig
}

type ObjectStoreConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type AIConfig struct {
	Provider         string
	Chain            []string
	Scope            string
	UpgradeWindow    int
	InferenceTimeout time.Duration
	Gemini           GeminiConfig
	OpenAI           OpenAIConfig
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAIConfig also serves Ollama and vLLM through their OpenAI-compatible endpoints.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type ChatConfig struct {
	DefaultLanguage string
	Timezone        string
	HistoryLimit    int
}

type UsageConfig struct {
	FreeLimit       int64
	ProLimit        int64
	EnterpriseLimit int64
	Window          time.Duration
	HardQuota       bool
}

type SecurityConfig struct {
	RulesFile string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outbound email is configured.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

type RateLimitConfig struct {
	ChatPerMinute  int
	AdminPerMinute int
}

var validProviders = map[string]bool{
	"gemini": true,
	"openai": true,
	"ollama": true,
	"vllm":   true,
	"mock":   true,
}

var defaultChains = map[string][]string{
	"gemini": {"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash"},
	"openai": {"gpt-4o", "gpt-4o-mini"},
	"ollama": {"llama3.1"},
	"vllm":   {"default"},
	"mock":   {"mock-large", "mock-small"},
}

var defaultBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1",
	"ollama": "http://localhost:11434/v1",
	"vllm":   "http://localhost:8000/v1",
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is applied first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	provider := os.Getenv("AI_PROVIDER")

	cfg := &Config{
		Server: ServerConfig{
			Port:     envInt("PROPCHAT_PORT", 8080),
			Env:      envString("PROPCHAT_ENV", "development"),
			AdminKey: os.Getenv("ADMIN_API_KEY"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Store: StoreConfig{
			Backend: envString("STORE_BACKEND", "postgres"),
		},
		Tenancy: TenancyConfig{
			Mode:          envString("TENANT_MODE", "multi"),
			DefaultTenant: os.Getenv("DEFAULT_TENANT"),
		},
		Catalog: CatalogConfig{
			Source:   envString("CATALOG_SOURCE", "local"),
			TTL:      envDurationSecs("CATALOG_CACHE_TTL", time.Hour),
			LocalDir: envString("CATALOG_LOCAL_DIR", "data/catalogs"),
			ObjectStore: ObjectStoreConfig{
				Bucket:          os.Getenv("CATALOG_BUCKET"),
				Prefix:          os.Getenv("CATALOG_PREFIX"),
				Endpoint:        os.Getenv("CATALOG_S3_ENDPOINT"),
				Region:          envString("CATALOG_S3_REGION", "auto"),
				AccessKeyID:     os.Getenv("CATALOG_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("CATALOG_S3_SECRET_ACCESS_KEY"),
				PathStyle:       envBool("CATALOG_S3_PATH_STYLE", false),
			},
			Mongo: MongoConfig{
				URI:        os.Getenv("CATALOG_MONGO_URI"),
				Database:   envString("CATALOG_MONGO_DATABASE", "propchat"),
				Collection: envString("CATALOG_MONGO_COLLECTION", "properties"),
			},
		},
		AI: AIConfig{
			Provider:         provider,
			Chain:            envList("AI_MODEL_CHAIN", defaultChains[provider]),
			Scope:            envString("MODEL_SCOPE", "request"),
			UpgradeWindow:    envInt("MODEL_UPGRADE_WINDOW", 20),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", defaultBaseURLs[provider]),
			},
		},
		Chat: ChatConfig{
			DefaultLanguage: envString("DEFAULT_LANGUAGE", "id"),
			Timezone:        envString("CHAT_TIMEZONE", "Asia/Jakarta"),
			HistoryLimit:    envInt("CHAT_HISTORY_LIMIT", 20),
		},
		Usage: UsageConfig{
			FreeLimit:       int64(envInt("USAGE_LIMIT_FREE", 100_000)),
			ProLimit:        int64(envInt("USAGE_LIMIT_PRO", 1_000_000)),
			EnterpriseLimit: int64(envInt("USAGE_LIMIT_ENTERPRISE", 10_000_000)),
			Window:          time.Duration(envInt("USAGE_WINDOW_DAYS", 30)) * 24 * time.Hour,
			HardQuota:       envBool("USAGE_HARD_QUOTA", false),
		},
		Security: SecurityConfig{
			RulesFile: os.Getenv("SECURITY_RULES_FILE"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		RateLimit: RateLimitConfig{
			ChatPerMinute:  envInt("RATE_LIMIT_CHAT_PER_MIN", 30),
			AdminPerMinute: envInt("RATE_LIMIT_ADMIN_PER_MIN", 120),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if k := c.Server.AdminKey; k != "" && len(k) < 16 {
		return fmt.Errorf("ADMIN_API_KEY must be at least 16 characters")
	}

	switch c.Store.Backend {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, memory; got %q", c.Store.Backend)
	}

	switch c.Tenancy.Mode {
	case "multi":
	case "single":
		if c.Tenancy.DefaultTenant == "" {
			return fmt.Errorf("DEFAULT_TENANT is required when TENANT_MODE is single")
		}
	default:
		return fmt.Errorf("TENANT_MODE must be one of single, multi; got %q", c.Tenancy.Mode)
	}

	switch c.Catalog.Source {
	case "local":
		if c.Catalog.LocalDir == "" {
			return fmt.Errorf("CATALOG_LOCAL_DIR is required when CATALOG_SOURCE is local")
		}
	case "objectstore":
		if c.Catalog.ObjectStore.Bucket == "" {
			return fmt.Errorf("CATALOG_BUCKET is required when CATALOG_SOURCE is objectstore")
		}
		if e := c.Catalog.ObjectStore.Endpoint; e != "" && !isHTTPURL(e) {
			return fmt.Errorf("CATALOG_S3_ENDPOINT must start with http:// or https://, got %q", e)
		}
	case "document":
		if c.Catalog.Mongo.URI == "" {
			return fmt.Errorf("CATALOG_MONGO_URI is required when CATALOG_SOURCE is document")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be one of local, objectstore, document; got %q", c.Catalog.Source)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, openai, ollama, vllm, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if (c.AI.Provider == "ollama" || c.AI.Provider == "vllm") && !isHTTPURL(c.AI.OpenAI.BaseURL) {
		return fmt.Errorf("OPENAI_BASE_URL must start with http:// or https://, got %q", c.AI.OpenAI.BaseURL)
	}
	if len(c.AI.Chain) == 0 {
		return fmt.Errorf("AI_MODEL_CHAIN must name at least one model")
	}
	switch c.AI.Scope {
	case "request", "tenant", "global":
	default:
		return fmt.Errorf("MODEL_SCOPE must be one of request, tenant, global; got %q", c.AI.Scope)
	}
	if c.AI.UpgradeWindow < 1 {
		return fmt.Errorf("MODEL_UPGRADE_WINDOW must be positive, got %d", c.AI.UpgradeWindow)
	}

	switch c.Chat.DefaultLanguage {
	case "id", "en":
	default:
		return fmt.Errorf("DEFAULT_LANGUAGE must be one of id, en; got %q", c.Chat.DefaultLanguage)
	}
	if _, err := time.LoadLocation(c.Chat.Timezone); err != nil {
		return fmt.Errorf("CHAT_TIMEZONE %q is not a known location: %w", c.Chat.Timezone, err)
	}

	if c.Usage.FreeLimit <= 0 || c.Usage.ProLimit <= 0 || c.Usage.EnterpriseLimit <= 0 {
		return fmt.Errorf("USAGE_LIMIT_* values must be positive")
	}

	if c.SMTP.Enabled() && c.SMTP.From == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// envList splits a comma-separated value, dropping blank items.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
