package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Env         string `validate:"required"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	MetricsAddr string
	Timezone    string `validate:"required"`
	Users       []string

	Database DatabaseConfig
	Sheet    SheetConfig
	OpenAI   OpenAIConfig
	Quiz     QuizConfig
	Cache    CacheConfig
}

// DatabaseConfig selects the exposure store
type DatabaseConfig struct {
	Type string `validate:"oneof=sqlite postgres"`
	DSN  string `validate:"required"`
}

// SheetConfig points at the workbook holding the word and problem lists
type SheetConfig struct {
	Path string `validate:"required"`
}

// OpenAIConfig configures the content provider
type OpenAIConfig struct {
	APIKey          string
	Model           string        `validate:"required"`
	URL             string        `validate:"required,url"`
	Timeout         time.Duration `validate:"gt=0"`
	MaxRetries      int           `validate:"gte=1,lte=5"`
	DailyTokenLimit int           `validate:"gte=0"`
}

// QuizConfig holds the selection and grading knobs
type QuizConfig struct {
	GradeThreshold    float64 `validate:"gt=0,lte=1"`
	MaxExposureCount  int     `validate:"gte=1"`
	DailyWordLimit    int     `validate:"gte=1"`
	DailyProblemLimit int     `validate:"gte=1"`
	DistractorCount   int     `validate:"gte=1,lte=6"`
}

// CacheConfig controls content cache expiry and persistence
type CacheConfig struct {
	WordTTL       time.Duration `validate:"gt=0"`
	FlushInterval time.Duration `validate:"gt=0"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Env:      "development",
		LogLevel: "info",
		Timezone: "Local",
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "data/wordquiz.db",
		},
		Sheet: SheetConfig{
			Path: "data/wordquiz.xlsx",
		},
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-mini-2024-07-18",
			URL:             "https://api.openai.com/v1/chat/completions",
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			DailyTokenLimit: 100000,
		},
		Quiz: QuizConfig{
			GradeThreshold:    0.9,
			MaxExposureCount:  10,
			DailyWordLimit:    120,
			DailyProblemLimit: 50,
			DistractorCount:   3,
		},
		Cache: CacheConfig{
			WordTTL:       30 * 24 * time.Hour,
			FlushInterval: 5 * time.Minute,
		},
	}
}

// Load reads the configuration from the environment, after loading a .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.Users = splitList(getEnv("QUIZ_USERS", ""))

	cfg.Database.Type = getEnv("DB_TYPE", cfg.Database.Type)
	if cfg.Database.Type == "postgres" {
		cfg.Database.DSN = getEnv("DB_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=wordquiz sslmode=disable")
	} else {
		cfg.Database.DSN = getEnv("SQLITE_PATH", cfg.Database.DSN)
	}
	cfg.Sheet.Path = getEnv("SHEET_PATH", cfg.Sheet.Path)

	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.URL = getEnv("OPENAI_URL", cfg.OpenAI.URL)

	var err error
	if cfg.OpenAI.Timeout, err = getDuration("OPENAI_TIMEOUT", cfg.OpenAI.Timeout); err != nil {
		return nil, err
	}
	if cfg.OpenAI.MaxRetries, err = getInt("OPENAI_MAX_RETRIES", cfg.OpenAI.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.OpenAI.DailyTokenLimit, err = getInt("DAILY_TOKEN_LIMIT", cfg.OpenAI.DailyTokenLimit); err != nil {
		return nil, err
	}
	if cfg.Quiz.GradeThreshold, err = getFloat("GRADE_THRESHOLD", cfg.Quiz.GradeThreshold); err != nil {
		return nil, err
	}
	if cfg.Quiz.MaxExposureCount, err = getInt("MAX_EXPOSURE_COUNT", cfg.Quiz.MaxExposureCount); err != nil {
		return nil, err
	}
	if cfg.Quiz.DailyWordLimit, err = getInt("DAILY_WORD_LIMIT", cfg.Quiz.DailyWordLimit); err != nil {
		return nil, err
	}
	if cfg.Quiz.DailyProblemLimit, err = getInt("DAILY_PROBLEM_LIMIT", cfg.Quiz.DailyProblemLimit); err != nil {
		return nil, err
	}
	if cfg.Cache.WordTTL, err = getDuration("WORD_CACHE_TTL", cfg.Cache.WordTTL); err != nil {
		return nil, err
	}
	if cfg.Cache.FlushInterval, err = getDuration("CACHE_FLUSH_INTERVAL", cfg.Cache.FlushInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location returns the time zone used for "today" and dashboard dates
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer: %w", key, value, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number: %w", key, value, err)
	}
	return f, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid duration: %w", key, value, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
