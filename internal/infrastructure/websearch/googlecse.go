package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var _ ports.Provider = (*GoogleCSE)(nil)

// Error reasons Google reports when a key is out of quota.
var quotaReasons = map[string]bool{
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// GoogleCSE queries a Google Programmable Search Engine.
type GoogleCSE struct {
	base
	apiKey   string
	engineID string
}

// NewGoogleCSE creates a Google Custom Search provider. Both the API key
// and the engine ID are required.
func NewGoogleCSE(cfg config.ProviderConfig, client *http.Client) (*GoogleCSE, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, errors.New("google custom search needs an api key and an engine id")
	}
	return &GoogleCSE{
		base:     newBase(NameGoogleCSE, cfg, client),
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
	}, nil
}

type cseResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		DisplayLink string `json:"displayLink"`
	} `json:"items"`
}

type cseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search runs one query against the engine.
func (g *GoogleCSE) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	body, status, err := g.get(ctx, g.endpoint, url.Values{
		"key": {g.apiKey},
		"cx":  {g.engineID},
		"q":   {query},
		"num": {strconv.Itoa(maxResults)},
	}, nil)
	if err != nil {
		if status == http.StatusForbidden && quotaExceeded(body) {
			return nil, rateLimited(err)
		}
		return nil, err
	}

	var resp cseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, g.fail(status, fmt.Errorf("decoding response: %w", err))
	}

	results := make([]entities.SearchResult, 0, len(resp.Items))
	for i, item := range resp.Items {
		results = append(results, entities.SearchResult{
			Title:          item.Title,
			URL:            item.Link,
			Snippet:        item.Snippet,
			RelevanceScore: relevance(i, 0.1),
			Metadata:       map[string]string{"display_link": item.DisplayLink},
		})
	}
	return results, nil
}

func quotaExceeded(body []byte) bool {
	var e cseError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	for _, r := range e.Error.Errors {
		if quotaReasons[r.Reason] {
			return true
		}
	}
	return false
}
