// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for newsground configuration.
	DefaultConfigDir = ".newsground"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite file name inside the config dir.
	DefaultDatabaseFile = "newsground.db"
	// DefaultEnvFile is loaded from the base path before env overrides.
	DefaultEnvFile = ".env"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	SQLite    SQLiteConfig              `yaml:"sqlite,omitempty"`
	Resolver  ResolverConfig            `yaml:"resolver,omitempty"`
	Lookup    LookupConfig              `yaml:"lookup,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Workers   WorkersConfig             `yaml:"workers,omitempty"`
	Embedder  EmbedderConfig            `yaml:"embedder,omitempty"`
	Qdrant    QdrantConfig              `yaml:"qdrant,omitempty"`
	Log       LogConfig                 `yaml:"log,omitempty"`
	HTTP      HTTPConfig                `yaml:"http,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite entity store and lookup cache.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Relative paths are
	// resolved against the base path; empty means the default file.
	Path string `yaml:"path,omitempty"`
}

// ResolverConfig holds per-tier thresholds.
type ResolverConfig struct {
	SymbolThreshold       float64 `yaml:"symbol_threshold,omitempty"`
	AliasThreshold        float64 `yaml:"alias_threshold,omitempty"`
	PersonThreshold       float64 `yaml:"person_threshold,omitempty"`
	MinRelevance          float64 `yaml:"min_relevance,omitempty"`
	AmbiguityMargin       float64 `yaml:"ambiguity_margin,omitempty"`
	FullTextMaxConfidence float64 `yaml:"full_text_max_confidence,omitempty"`
	CandidateLimit        int     `yaml:"candidate_limit,omitempty"`
	// Semantic adds the Qdrant alias index as a full-text candidate source.
	Semantic bool `yaml:"semantic,omitempty"`
}

// LookupConfig holds the provider cascade settings.
type LookupConfig struct {
	Order   []string            `yaml:"order,omitempty"`
	ByKind  map[string][]string `yaml:"by_kind,omitempty"`
	Timeout time.Duration       `yaml:"timeout,omitempty"`
	Backoff BackoffConfig       `yaml:"backoff,omitempty"`
	// Force bypasses cached ok and empty entries by default.
	Force bool `yaml:"force,omitempty"`
}

// BackoffConfig holds the retry schedule for failed provider calls.
type BackoffConfig struct {
	Base        time.Duration `yaml:"base,omitempty"`
	Max         time.Duration `yaml:"max,omitempty"`
	Multiplier  float64       `yaml:"multiplier,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
}

// WorkersConfig holds grounding worker pool settings.
type WorkersConfig struct {
	Count    int    `yaml:"count,omitempty"`
	Queue    string `yaml:"queue,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
	RedisKey string `yaml:"redis_key,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// BaseURL overrides the API endpoint for compatible servers.
	BaseURL string `yaml:"base_url,omitempty"`
	// BatchSize caps the number of texts sent per request.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant alias index.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level,omitempty"`
	Format     string `yaml:"format,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			SymbolThreshold:       0.95,
			AliasThreshold:        0.9,
			PersonThreshold:       0.8,
			MinRelevance:          0.3,
			AmbiguityMargin:       0.03,
			FullTextMaxConfidence: 0.75,
			CandidateLimit:        10,
		},
		Lookup: LookupConfig{
			Order: []string{"wikipedia", "wikidata", "duckduckgo", "google_cse"},
			ByKind: map[string][]string{
				"symbol": {"finnhub", "duckduckgo", "google_cse"},
			},
			Timeout: 15 * time.Second,
			Backoff: BackoffConfig{
				Base:        15 * time.Minute,
				Max:         60 * time.Minute,
				Multiplier:  2,
				MaxAttempts: 5,
			},
		},
		Providers: DefaultProviders(),
		Workers: WorkersConfig{
			Count:    4,
			Queue:    "memory",
			RedisURL: "redis://localhost:6379/0",
			RedisKey: "newsground:mentions",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "newsground_aliases",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from the .newsground directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'newsground init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(basePath, data)
}

// Parse builds a Config from YAML data on top of the defaults, then
// applies the .env file and environment overrides.
func Parse(basePath string, data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyProviderDefaults()

	if err := loadEnvFile(basePath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads basePath/.env without overriding variables already set.
func loadEnvFile(basePath string) error {
	err := godotenv.Load(filepath.Join(basePath, DefaultEnvFile))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", DefaultEnvFile, err)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedder.APIKey == "" {
		c.Embedder.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = key
	}
	if key := os.Getenv("GOOGLE_CUSTOM_SEARCH_ENGINE_API"); key != "" {
		c.setProviderField("google_cse", func(p *ProviderConfig) {
			if p.APIKey == "" {
				p.APIKey = key
			}
		})
	}
	if id := os.Getenv("GOOGLE_CUSTOM_SEARCH_ENGINE_ID"); id != "" {
		c.setProviderField("google_cse", func(p *ProviderConfig) {
			if p.EngineID == "" {
				p.EngineID = id
			}
		})
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.setProviderField("finnhub", func(p *ProviderConfig) {
			if p.APIKey == "" {
				p.APIKey = key
			}
		})
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Workers.RedisURL = url
	}
	if level := os.Getenv("NEWSGROUND_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func (c *Config) setProviderField(name string, set func(*ProviderConfig)) {
	p := c.Providers[name]
	set(&p)
	c.Providers[name] = p
}

// Validate checks values that would otherwise fail late at wiring time.
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"resolver.symbol_threshold":         c.Resolver.SymbolThreshold,
		"resolver.alias_threshold":          c.Resolver.AliasThreshold,
		"resolver.person_threshold":         c.Resolver.PersonThreshold,
		"resolver.min_relevance":            c.Resolver.MinRelevance,
		"resolver.full_text_max_confidence": c.Resolver.FullTextMaxConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s: %v (must be between 0 and 1)", name, v)
		}
	}
	switch c.Workers.Queue {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid workers.queue: %q (must be memory or redis)", c.Workers.Queue)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %q (must be text or json)", c.Log.Format)
	}
	if c.Lookup.Backoff.Multiplier < 1 {
		return fmt.Errorf("invalid lookup.backoff.multiplier: %v (must be at least 1)", c.Lookup.Backoff.Multiplier)
	}
	return nil
}

// ConfigDir returns the path to the .newsground config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// SQLitePath returns the database path, resolving relative paths against basePath.
func (c *Config) SQLitePath(basePath string) string {
	switch {
	case c.SQLite.Path == "":
		return filepath.Join(basePath, DefaultConfigDir, DefaultDatabaseFile)
	case c.SQLite.Path == ":memory:" || filepath.IsAbs(c.SQLite.Path):
		return c.SQLite.Path
	}
	return filepath.Join(basePath, c.SQLite.Path)
}

// Exists checks if a newsground config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
