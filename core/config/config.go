package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	MCP       MCPConfig
	Paths     PathsConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	AI        AIConfig
	Pipelines PipelinesConfig
	Usage     UsageConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	BodyLimit          int
	ServerID           string
}

type MCPConfig struct {
	Port string
	Host string
}

type PathsConfig struct {
	Storages string
}

type CacheConfig struct {
	Enabled          bool
	Backend          string // memory | valkey
	DefaultTTL       time.Duration
	MaxEntries       int
	SweepInterval    time.Duration
	CacheableMethods []string
}

type RateLimitConfig struct {
	Enabled   bool
	Algorithm string // fixed | token
	Window    time.Duration
	Max       int
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type AIConfig struct {
	GeminiAPIKey           string
	OpenAIAPIKey           string
	TextGenerationProvider string // gemini | openai
	TextGenerationModel    string
	OpenAITextModel        string
	SummarizationModel     string
	ClassificationModel    string
	SpeechToTextModel      string
	TextToSpeechModel      string
	TextToSpeechVoice      string
	TextToImageModel       string
	TextToVideoModel       string
	RequestTimeout         time.Duration
	VideoPollInterval      time.Duration
	MaxImageBytes          int64
	MaxAudioBytes          int64
	ClassificationMaxSide  int
}

type PipelinesConfig struct {
	Preload []string
}

type UsageConfig struct {
	Enabled   bool
	Workers   int
	QueueSize int
}

// LoadConfig loads configuration from Environment Variables or defaults.
// .env must already be loaded into the environment (see utils.LoadConfig).
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	cors_origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		cors_origins = splitList(v)
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: cors_origins,
		BodyLimit:          getEnvInt("APP_BODY_LIMIT", 25*1024*1024),
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = splitList(v)
	}

	var errs []string
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}

	cacheCfg := CacheConfig{
		Enabled:          getEnvBool("CACHE_ENABLED", true),
		Backend:          strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		DefaultTTL:       duration("CACHE_TTL", 5*time.Minute),
		MaxEntries:       getEnvInt("CACHE_MAX_ENTRIES", 1000),
		SweepInterval:    duration("CACHE_SWEEP_INTERVAL", time.Minute),
		CacheableMethods: splitList(strings.ToUpper(getEnv("CACHE_METHODS", "GET,POST"))),
	}

	rlCfg := RateLimitConfig{
		Enabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
		Algorithm: strings.ToLower(getEnv("RATE_LIMIT_ALGORITHM", "fixed")),
		Window:    duration("RATE_LIMIT_WINDOW", 15*time.Minute),
		Max:       getEnvInt("RATE_LIMIT_MAX", 100),
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(baseDir, "usage.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azinfer:"),
	}

	aiCfg := AIConfig{
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		TextGenerationProvider: strings.ToLower(getEnv("AI_TEXT_GENERATION_PROVIDER", "gemini")),
		TextGenerationModel:    getEnv("AI_TEXT_GENERATION_MODEL", "gemini-2.5-flash"),
		OpenAITextModel:        getEnv("AI_OPENAI_TEXT_MODEL", "gpt-4o-mini"),
		SummarizationModel:     getEnv("AI_SUMMARIZATION_MODEL", "gemini-2.5-flash-lite"),
		ClassificationModel:    getEnv("AI_CLASSIFICATION_MODEL", "gemini-2.5-flash"),
		SpeechToTextModel:      getEnv("AI_SPEECH_TO_TEXT_MODEL", "gemini-2.5-flash"),
		TextToSpeechModel:      getEnv("AI_TEXT_TO_SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		TextToSpeechVoice:      getEnv("AI_TEXT_TO_SPEECH_VOICE", "Kore"),
		TextToImageModel:       getEnv("AI_TEXT_TO_IMAGE_MODEL", "dall-e-3"),
		TextToVideoModel:       getEnv("AI_TEXT_TO_VIDEO_MODEL", "veo-2.0-generate-001"),
		RequestTimeout:         duration("AI_REQUEST_TIMEOUT", 2*time.Minute),
		VideoPollInterval:      duration("AI_VIDEO_POLL_INTERVAL", 10*time.Second),
		MaxImageBytes:          getEnvInt64("AI_MAX_IMAGE_BYTES", 8*1024*1024),
		MaxAudioBytes:          getEnvInt64("AI_MAX_AUDIO_BYTES", 16*1024*1024),
		ClassificationMaxSide:  getEnvInt("AI_CLASSIFICATION_MAX_SIDE", 1024),
	}

	cfg := &Config{
		App:       appCfg,
		MCP:       MCPConfig{Port: getEnv("MCP_PORT", "8080"), Host: getEnv("MCP_HOST", "localhost")},
		Paths:     PathsConfig{Storages: baseDir},
		Cache:     cacheCfg,
		RateLimit: rlCfg,
		Database:  dbCfg,
		AI:        aiCfg,
		Pipelines: PipelinesConfig{Preload: splitList(getEnv("PIPELINES_PRELOAD", ""))},
		Usage: UsageConfig{
			Enabled:   getEnvBool("USAGE_ENABLED", true),
			Workers:   getEnvInt("USAGE_WORKERS", 2),
			QueueSize: getEnvInt("USAGE_QUEUE_SIZE", 500),
		},
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}
