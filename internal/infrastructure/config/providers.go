package config

import "sort"

// ProviderConfig holds settings for one external lookup provider.
type ProviderConfig struct {
	// Enabled defaults to true when omitted.
	Enabled    *bool   `yaml:"enabled,omitempty"`
	RPS        float64 `yaml:"rps,omitempty"`
	Endpoint   string  `yaml:"endpoint,omitempty"`
	APIKey     string  `yaml:"api_key,omitempty"`
	EngineID   string  `yaml:"engine_id,omitempty"`
	DailyQuota int     `yaml:"daily_quota,omitempty"`
	UserAgent  string  `yaml:"user_agent,omitempty"`
}

const defaultUserAgent = "newsground/1.0 (entity grounding; +https://github.com/ersonp/newsground)"

// IsEnabled reports whether the provider should be wired.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// DefaultProviders returns the built-in provider settings. Providers that
// need credentials are skipped at wiring time until a key is set.
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"wikipedia": {
			RPS:       0.3,
			Endpoint:  "https://en.wikipedia.org/w/api.php",
			UserAgent: defaultUserAgent,
		},
		"wikidata": {
			RPS:       0.3,
			Endpoint:  "https://query.wikidata.org/sparql",
			UserAgent: defaultUserAgent,
		},
		"duckduckgo": {
			RPS:       0.1,
			Endpoint:  "https://html.duckduckgo.com/html/",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		"google_cse": {
			RPS:        0.1,
			Endpoint:   "https://www.googleapis.com/customsearch/v1",
			DailyQuota: 100,
		},
		"finnhub": {
			RPS: 1,
		},
	}
}

// applyProviderDefaults fills fields a partial provider entry left empty.
func (c *Config) applyProviderDefaults() {
	defaults := DefaultProviders()
	if c.Providers == nil {
		c.Providers = defaults
		return
	}
	for name, p := range c.Providers {
		d, ok := defaults[name]
		if !ok {
			continue
		}
		if p.RPS == 0 {
			p.RPS = d.RPS
		}
		if p.Endpoint == "" {
			p.Endpoint = d.Endpoint
		}
		if p.DailyQuota == 0 {
			p.DailyQuota = d.DailyQuota
		}
		if p.UserAgent == "" {
			p.UserAgent = d.UserAgent
		}
		c.Providers[name] = p
	}
}

// EnabledProviders returns the names of enabled providers, sorted.
func (c *Config) EnabledProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if p.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DailyQuotas returns the configured per-provider daily call limits.
func (c *Config) DailyQuotas() map[string]int {
	quotas := make(map[string]int)
	for name, p := range c.Providers {
		if p.DailyQuota > 0 {
			quotas[name] = p.DailyQuota
		}
	}
	return quotas
}
