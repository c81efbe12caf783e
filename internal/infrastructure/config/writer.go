package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Newsground Configuration

sqlite:
  # path: .newsground/newsground.db

resolver:
  symbol_threshold: 0.95
  alias_threshold: 0.9
  person_threshold: 0.8
  min_relevance: 0.3
  ambiguity_margin: 0.03
  full_text_max_confidence: 0.75
  candidate_limit: 10
  # semantic: true (query the Qdrant alias index as well)

lookup:
  order: [wikipedia, wikidata, duckduckgo, google_cse]
  by_kind:
    symbol: [finnhub, duckduckgo, google_cse]
  timeout: 15s
  backoff:
    base: 15m
    max: 60m
    multiplier: 2
    max_attempts: 5

providers:
  wikipedia:
    rps: 0.3
  wikidata:
    rps: 0.3
  duckduckgo:
    rps: 0.1
  google_cse:
    rps: 0.1
    daily_quota: 100
    # api_key: your-api-key (or set GOOGLE_CUSTOM_SEARCH_ENGINE_API env var)
    # engine_id: your-cse-id (or set GOOGLE_CUSTOM_SEARCH_ENGINE_ID env var)
  finnhub:
    rps: 1
    # api_key: your-api-key (or set FINNHUB_API_KEY env var)

workers:
  count: 4
  queue: memory
  # redis_url: redis://localhost:6379/0 (or set REDIS_URL env var)

embedder:
  provider: openai
  model: text-embedding-3-small
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

qdrant:
  host: localhost
  port: 6334
  collection: newsground_aliases
  # api_key: your-api-key (for Qdrant Cloud)

log:
  level: info
  format: text
  # file: .newsground/newsground.log

http:
  addr: ":8080"
`

// WriteDefault creates the .newsground directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
