package websearch

import (
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

// NewProviders builds every enabled provider, in name order. Providers
// missing credentials and unknown names are skipped with a log line.
func NewProviders(cfgs map[string]config.ProviderConfig, client *http.Client, logger *slog.Logger) []ports.Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	var providers []ports.Provider
	for _, name := range names {
		cfg := cfgs[name]
		if !cfg.IsEnabled() {
			logger.Debug("provider disabled", "provider", name)
			continue
		}

		var p ports.Provider
		var err error
		switch name {
		case NameWikipedia:
			p = NewWikipedia(cfg, client)
		case NameWikidata:
			p = NewWikidata(cfg, client)
		case NameDuckDuckGo:
			p = NewDuckDuckGo(cfg, client)
		case NameGoogleCSE:
			p, err = newOptional(NewGoogleCSE(cfg, client))
		case NameFinnhub:
			p, err = newOptional(NewFinnhub(cfg, client))
		default:
			logger.Warn("unknown provider in config", "provider", name)
			continue
		}
		if err != nil {
			logger.Info("provider skipped", "provider", name, "reason", err)
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

// newOptional converts a typed constructor result into a ports.Provider
// without wrapping a nil pointer in a non-nil interface.
func newOptional[T ports.Provider](p T, err error) (ports.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
