package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// geminiKeyPlaceholders are values that deployment templates ship as defaults.
// A platform Gemini key matching one of these is treated as absent.
var geminiKeyPlaceholders = map[string]struct{}{
	"your-gemini-api-key":   {},
	"your_gemini_api_key":   {},
	"changeme":              {},
	"replace-me":            {},
	"GEMINI_API_KEY":        {},
	"<your-gemini-api-key>": {},
}

// Config represents application configuration loaded once from environment
// variables at process start. It is passed explicitly and never mutated.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	StoragePath    string
	StorageBaseURL string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	ReplicateModel    string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	GeminiBaseURL    string

	GenerationCost int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		ReplicateAPIToken: strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:    getEnv("REPLICATE_MODEL", "black-forest-labs/flux-schnell"),

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		GenerationCost: getEnvInt("GENERATION_COST", 1),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

// HasReplicate reports whether a platform Replicate credential is configured.
func (c *Config) HasReplicate() bool {
	return c.ReplicateAPIToken != ""
}

// HasGemini reports whether a platform Gemini credential is configured and
// is not a known deployment placeholder.
func (c *Config) HasGemini() bool {
	if c.GeminiAPIKey == "" {
		return false
	}
	_, placeholder := geminiKeyPlaceholders[c.GeminiAPIKey]
	return !placeholder
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
