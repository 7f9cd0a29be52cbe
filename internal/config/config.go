package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all askdb configuration.
type Config struct {
	// LLM oracle configuration
	LLM LLMConfig `yaml:"llm"`

	// Relational database
	Database DatabaseConfig `yaml:"database"`

	// Document corpus and retrieval
	Corpus CorpusConfig `yaml:"corpus"`

	// Repair loop
	Repair RepairConfig `yaml:"repair"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation oracle.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, rule
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// DatabaseConfig configures the SQLite analytics database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CorpusConfig configures the document corpus and the lexical retriever.
type CorpusConfig struct {
	Dir      string `yaml:"dir"`
	TopK     int    `yaml:"top_k"`
	CacheTTL string `yaml:"cache_ttl"`
}

// RepairConfig bounds the SQL repair loop.
type RepairConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Database: DatabaseConfig{
			Path: "data/northwind.sqlite",
		},
		Corpus: CorpusConfig{
			Dir:      "docs",
			TopK:     3,
			CacheTTL: "5m",
		},
		Repair: RepairConfig{
			MaxAttempts: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides lets the environment take precedence over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if v := os.Getenv("ASKDB_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("ASKDB_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ASKDB_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ASKDB_DOCS_DIR"); v != "" {
		c.Corpus.Dir = v
	}
}
