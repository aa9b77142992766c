package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Queue      QueueConfig      `yaml:"queue"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// CheckpointConfig holds audit-trail storage configuration.
// An empty DSN disables checkpointing.
type CheckpointConfig struct {
	DSN       string        `yaml:"dsn"`
	Retention time.Duration `yaml:"retention"` // 0 keeps everything
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr         string   `yaml:"http_addr"`
	GRPCHealthAddr   string   `yaml:"grpc_health_addr"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider            string        `yaml:"provider"` // openai | eino | gemini
	Model               string        `yaml:"model"`
	APIKey              string        `yaml:"-"`
	BaseURL             string        `yaml:"base_url"`
	GeminiAPIKey        string        `yaml:"-"`
	GeminiModel         string        `yaml:"gemini_model"`
	PreciseTemperature  float32       `yaml:"precise_temperature"`
	CreativeTemperature float32       `yaml:"creative_temperature"`
	Timeout             time.Duration `yaml:"timeout"`
	RatePerSec          float64       `yaml:"rate_per_sec"` // 0 disables limiting
}

// PipelineConfig holds intake pipeline behavior flags.
type PipelineConfig struct {
	ExtractionStrategy string `yaml:"extraction_strategy"` // flat | comprehensive
}

// QueueConfig holds background dispatch configuration.
type QueueConfig struct {
	Workers    int           `yaml:"workers"`
	Size       int           `yaml:"size"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// IngestConfig holds capture inbox configuration. Empty Dir disables the watcher.
type IngestConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoadConfig loads configuration from an optional .env file, an optional YAML
// file named by CONFIG_FILE, and environment variables, in increasing priority.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "read .env", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read "+path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse "+path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			GRPCHealthAddr: ":8081",
		},
		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "gpt-4o-mini",
			GeminiModel:         "gemini-2.5-flash",
			PreciseTemperature:  0.1,
			CreativeTemperature: 0.7,
			Timeout:             45 * time.Second,
		},
		Pipeline: PipelineConfig{
			ExtractionStrategy: "flat",
		},
		Queue: QueueConfig{
			Workers:    4,
			Size:       256,
			RunTimeout: 3 * time.Minute,
		},
		Ingest: IngestConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

func applyEnv(c *Config) {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	// checkpoints share the main database unless pointed elsewhere
	c.Checkpoint.DSN = getEnv("CHECKPOINT_DSN", c.Checkpoint.DSN)
	if c.Checkpoint.DSN == "" {
		c.Checkpoint.DSN = c.Database.DSN
	}
	c.Checkpoint.Retention = getEnvAsDuration("CHECKPOINT_RETENTION", c.Checkpoint.Retention)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", c.Server.GRPCHealthAddr)
	if v := getEnv("CORS_ALLOW_ORIGINS", ""); v != "" {
		c.Server.CORSAllowOrigins = splitList(v)
	}

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.GeminiModel = getEnv("GEMINI_MODEL", c.LLM.GeminiModel)
	c.LLM.PreciseTemperature = getEnvAsFloat32("LLM_TEMPERATURE_PRECISE", c.LLM.PreciseTemperature)
	c.LLM.CreativeTemperature = getEnvAsFloat32("LLM_TEMPERATURE_CREATIVE", c.LLM.CreativeTemperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.RatePerSec = getEnvAsFloat64("LLM_RATE_PER_SEC", c.LLM.RatePerSec)

	c.Pipeline.ExtractionStrategy = strings.ToLower(getEnv("EXTRACTION_STRATEGY", c.Pipeline.ExtractionStrategy))

	c.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.RunTimeout = getEnvAsDuration("QUEUE_RUN_TIMEOUT", c.Queue.RunTimeout)

	c.Ingest.Dir = getEnv("CAPTURE_DIR", c.Ingest.Dir)
	c.Ingest.Debounce = getEnvAsDuration("CAPTURE_DEBOUNCE", c.Ingest.Debounce)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "eino":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	switch c.Pipeline.ExtractionStrategy {
	case "flat", "comprehensive":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown EXTRACTION_STRATEGY %q", c.Pipeline.ExtractionStrategy), ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Checkpoint.Retention < 0 {
		return NewAppError("CONFIG_ERROR", "CHECKPOINT_RETENTION must not be negative", ErrInvalidInput)
	}
	return nil
}
