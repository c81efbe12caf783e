package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var _ ports.Provider = (*Wikipedia)(nil)

// extractCount is how many top hits get their intro extract fetched.
const extractCount = 5

const wikipediaArticleBase = "https://en.wikipedia.org/wiki/"

var searchMatchTags = strings.NewReplacer(`<span class="searchmatch">`, "", `</span>`, "")

// Wikipedia searches English Wikipedia through the MediaWiki API.
type Wikipedia struct {
	base
}

// NewWikipedia creates a Wikipedia provider.
func NewWikipedia(cfg config.ProviderConfig, client *http.Client) *Wikipedia {
	return &Wikipedia{base: newBase(NameWikipedia, cfg, client)}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title     string `json:"title"`
			PageID    int64  `json:"pageid"`
			Snippet   string `json:"snippet"`
			WordCount int    `json:"wordcount"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int64  `json:"pageid"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search runs a full text search and replaces the snippets of the top
// hits with their plain text intro.
func (w *Wikipedia) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if err := w.wait(ctx); err != nil {
		return nil, err
	}

	body, _, err := w.get(ctx, w.endpoint, url.Values{
		"action":      {"query"},
		"list":        {"search"},
		"srsearch":    {query},
		"srlimit":     {strconv.Itoa(maxResults)},
		"srnamespace": {"0"},
		"format":      {"json"},
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp wikiSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, w.fail(0, fmt.Errorf("decoding search response: %w", err))
	}

	results := make([]entities.SearchResult, 0, len(resp.Query.Search))
	var pageIDs []string
	for i, hit := range resp.Query.Search {
		id := strconv.FormatInt(hit.PageID, 10)
		results = append(results, entities.SearchResult{
			Title:          hit.Title,
			URL:            wikipediaArticleBase + strings.ReplaceAll(hit.Title, " ", "_"),
			Snippet:        cleanSnippet(hit.Snippet),
			RelevanceScore: relevance(i, 0.1),
			Metadata: map[string]string{
				"pageid":    id,
				"wordcount": strconv.Itoa(hit.WordCount),
			},
		})
		if i < extractCount {
			pageIDs = append(pageIDs, id)
		}
	}

	if len(pageIDs) > 0 {
		// A failed extract fetch keeps the search snippets.
		if extracts, err := w.extracts(ctx, pageIDs); err == nil {
			for i := range results {
				if text := extracts[results[i].Metadata["pageid"]]; text != "" {
					results[i].Snippet = text
				}
			}
		}
	}

	return results, nil
}

// extracts fetches plain text intros keyed by page ID.
func (w *Wikipedia) extracts(ctx context.Context, pageIDs []string) (map[string]string, error) {
	body, _, err := w.get(ctx, w.endpoint, url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"exsentences": {"5"},
		"explaintext": {"1"},
		"exlimit":     {strconv.Itoa(len(pageIDs))},
		"pageids":     {strings.Join(pageIDs, "|")},
		"format":      {"json"},
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp wikiExtractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding extracts: %w", err)
	}

	out := make(map[string]string, len(resp.Query.Pages))
	for id, page := range resp.Query.Pages {
		out[id] = strings.TrimSpace(page.Extract)
	}
	return out, nil
}

// cleanSnippet strips search highlight markup and HTML entities.
func cleanSnippet(s string) string {
	return strings.TrimSpace(html.UnescapeString(searchMatchTags.Replace(s)))
}
