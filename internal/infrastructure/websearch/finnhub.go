package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var _ ports.Provider = (*Finnhub)(nil)

// Finnhub resolves tickers and company names through Finnhub symbol search.
type Finnhub struct {
	client *finnhub.DefaultApiService
	pacer  *Pacer
}

// NewFinnhub creates a Finnhub provider. An API key is required. A
// non-empty Endpoint replaces the default API base URL.
func NewFinnhub(cfg config.ProviderConfig, client *http.Client) (*Finnhub, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("finnhub needs an api key")
	}
	fcfg := finnhub.NewConfiguration()
	fcfg.AddDefaultHeader("X-Finnhub-Token", cfg.APIKey)
	if cfg.UserAgent != "" {
		fcfg.UserAgent = cfg.UserAgent
	}
	if cfg.Endpoint != "" {
		fcfg.Servers = finnhub.ServerConfigurations{{URL: cfg.Endpoint}}
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	fcfg.HTTPClient = client

	return &Finnhub{
		client: finnhub.NewAPIClient(fcfg).DefaultApi,
		pacer:  NewPacer(cfg.RPS),
	}, nil
}

// Name returns the provider name.
func (f *Finnhub) Name() string {
	return NameFinnhub
}

// Search looks up listed symbols matching the query.
func (f *Finnhub) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, f.fail(0, fmt.Errorf("waiting for rate limiter: %w", err))
	}

	res, httpResp, err := f.client.SymbolSearch(ctx).Q(query).Execute()
	if err != nil {
		code := 0
		if httpResp != nil {
			code = httpResp.StatusCode
		}
		return nil, f.fail(code, fmt.Errorf("symbol search: %w", err))
	}

	var results []entities.SearchResult
	for _, info := range res.GetResult() {
		if len(results) >= maxResults {
			break
		}
		symbol := info.GetSymbol()
		if symbol == "" {
			continue
		}
		display := info.GetDisplaySymbol()
		if display == "" {
			display = symbol
		}
		results = append(results, entities.SearchResult{
			Title:          info.GetDescription(),
			Snippet:        fmt.Sprintf("%s (%s)", display, info.GetType()),
			RelevanceScore: relevance(len(results), 0.1),
			Metadata: map[string]string{
				"symbol":         symbol,
				"display_symbol": display,
				"type":           info.GetType(),
			},
		})
	}
	return results, nil
}

func (f *Finnhub) fail(code int, err error) *entities.ProviderError {
	return &entities.ProviderError{
		Provider:    NameFinnhub,
		HTTPCode:    code,
		RateLimited: code == http.StatusTooManyRequests,
		Err:         err,
	}
}
