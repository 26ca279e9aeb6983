package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Batch      BatchConfig      `yaml:"batch"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
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

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // openai | gemini | vertex
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	VertexProjectID string        `yaml:"vertex_project_id"`
	VertexRegion    string        `yaml:"vertex_region"`
}

// BatchConfig holds batching and concurrency knobs
type BatchConfig struct {
	MaxRecords     int  `yaml:"max_records"`
	SalvagePartial bool `yaml:"salvage_partial"`
	SessionWorkers int  `yaml:"session_workers"`
	QueueSize      int  `yaml:"queue_size"`
}

// ExtractionConfig holds document text extraction configuration
type ExtractionConfig struct {
	Workers        int    `yaml:"workers"`
	Pdftotext      string `yaml:"pdftotext"`
	DetectLanguage bool   `yaml:"detect_language"`
}

// StorageConfig holds object storage configuration for gs:// document sources
type StorageConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "sqlite://docextract.db",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			CallTimeout: 120 * time.Second,
		},
		Batch: BatchConfig{
			MaxRecords:     50,
			SessionWorkers: 2,
			QueueSize:      64,
		},
		Extraction: ExtractionConfig{
			Workers:   4,
			Pdftotext: "pdftotext",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg
}

// LoadConfigFile loads defaults, overlays the YAML file at path, then environment variables.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxOutputTokens = getEnvAsInt32("LLM_MAX_OUTPUT_TOKENS", c.LLM.MaxOutputTokens)
	c.LLM.CallTimeout = getEnvAsDuration("LLM_CALL_TIMEOUT", c.LLM.CallTimeout)
	c.LLM.VertexProjectID = getEnv("VERTEX_PROJECT_ID", c.LLM.VertexProjectID)
	c.LLM.VertexRegion = getEnv("VERTEX_REGION", c.LLM.VertexRegion)

	c.Batch.MaxRecords = getEnvAsInt("BATCH_MAX_RECORDS", c.Batch.MaxRecords)
	c.Batch.SalvagePartial = getEnvAsBool("EXTRACT_SALVAGE_PARTIAL", c.Batch.SalvagePartial)
	c.Batch.SessionWorkers = getEnvAsInt("SESSION_WORKERS", c.Batch.SessionWorkers)
	c.Batch.QueueSize = getEnvAsInt("SESSION_QUEUE_SIZE", c.Batch.QueueSize)

	c.Extraction.Workers = getEnvAsInt("EXTRACT_WORKERS", c.Extraction.Workers)
	c.Extraction.Pdftotext = getEnv("PDFTOTEXT_BIN", c.Extraction.Pdftotext)
	c.Extraction.DetectLanguage = getEnvAsBool("DETECT_LANGUAGE", c.Extraction.DetectLanguage)

	c.Storage.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Storage.CredentialsFile)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required for provider "+c.LLM.Provider, ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.VertexProjectID == "" || c.LLM.VertexRegion == "" {
			return NewAppError("CONFIG_ERROR", "VERTEX_PROJECT_ID and VERTEX_REGION are required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.CallTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_CALL_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Batch.MaxRecords <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_MAX_RECORDS must be positive", ErrInvalidInput)
	}
	return nil
}
