package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env            string   `env:"ENV" envDefault:"development"`
	Port           string   `env:"PORT" envDefault:"8080"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"scribe"`
	PostgresURI string `env:"POSTGRES_URI"`
	RedisURL    string `env:"REDIS_URL"`

	STTProvider     string `env:"STT_PROVIDER" envDefault:"gemini"`
	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro"`
	VertexProjectID string `env:"VERTEX_PROJECT_ID"`
	VertexLocation  string `env:"VERTEX_LOCATION" envDefault:"us-central1"`
	SpeechLanguage  string `env:"SPEECH_LANGUAGE" envDefault:"en-US"`

	TranscriptBucket string        `env:"TRANSCRIPT_BUCKET"`
	QueueHighWater   int           `env:"QUEUE_HIGH_WATER_MARK" envDefault:"32"`
	ExportCacheTTL   time.Duration `env:"EXPORT_CACHE_TTL" envDefault:"10m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.QueueHighWater <= 0 {
		return fmt.Errorf("QUEUE_HIGH_WATER_MARK must be positive, got %d", c.QueueHighWater)
	}
	switch strings.ToLower(c.STTProvider) {
	case "gemini", "vertex", "google-speech":
	default:
		return fmt.Errorf("STT_PROVIDER %q is not supported", c.STTProvider)
	}
	switch strings.ToLower(c.LLMProvider) {
	case "gemini", "vertex":
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
	}
	if c.usesProvider("gemini") && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when a provider is gemini")
	}
	if c.usesProvider("vertex") && c.VertexProjectID == "" {
		return fmt.Errorf("VERTEX_PROJECT_ID is required when a provider is vertex")
	}
	return nil
}

func (c *Config) usesProvider(name string) bool {
	return strings.EqualFold(c.STTProvider, name) || strings.EqualFold(c.LLMProvider, name)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
