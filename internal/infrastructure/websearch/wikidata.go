package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var _ ports.Provider = (*Wikidata)(nil)

const wikidataQuery = `SELECT DISTINCT ?item ?itemLabel ?itemDescription ?article WHERE {
  VALUES ?name { %s }
  { ?item rdfs:label ?name } UNION { ?item skos:altLabel ?name }
  OPTIONAL {
    ?article schema:about ?item ;
             schema:isPartOf <https://en.wikipedia.org/> .
  }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT %d`

var sparqlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// Wikidata matches labels and aliases through the Wikidata SPARQL endpoint.
type Wikidata struct {
	base
}

// NewWikidata creates a Wikidata provider.
func NewWikidata(cfg config.ProviderConfig, client *http.Client) *Wikidata {
	return &Wikidata{base: newBase(NameWikidata, cfg, client)}
}

type sparqlValue struct {
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []struct {
			Item        sparqlValue  `json:"item"`
			Label       sparqlValue  `json:"itemLabel"`
			Description *sparqlValue `json:"itemDescription"`
			Article     *sparqlValue `json:"article"`
		} `json:"bindings"`
	} `json:"results"`
}

// Search looks up items whose English label or alias equals the query.
func (w *Wikidata) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if err := w.wait(ctx); err != nil {
		return nil, err
	}

	body, _, err := w.get(ctx, w.endpoint, url.Values{
		"query":  {buildSPARQL(query)},
		"format": {"json"},
	}, http.Header{"Accept": {"application/sparql-results+json"}})
	if err != nil {
		return nil, err
	}

	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, w.fail(0, fmt.Errorf("decoding sparql response: %w", err))
	}

	seen := make(map[string]bool)
	var results []entities.SearchResult
	for _, b := range resp.Results.Bindings {
		if b.Item.Value == "" || seen[b.Item.Value] {
			continue
		}
		seen[b.Item.Value] = true

		id := b.Item.Value[strings.LastIndex(b.Item.Value, "/")+1:]
		r := entities.SearchResult{
			Title:          b.Label.Value,
			URL:            b.Item.Value,
			Snippet:        "Wikidata entity: " + b.Label.Value,
			RelevanceScore: relevance(len(results), 0.1),
			Metadata:       map[string]string{"wikidata_id": id},
		}
		if b.Article != nil && b.Article.Value != "" {
			r.URL = b.Article.Value
			r.Metadata["wikidata_url"] = b.Item.Value
		}
		if b.Description != nil && b.Description.Value != "" {
			r.Snippet = b.Description.Value
		}
		results = append(results, r)
	}
	return results, nil
}

// buildSPARQL matches the query as given plus its title cased and, for
// short queries, upper cased spellings, since labels are case sensitive.
func buildSPARQL(query string) string {
	query = strings.TrimSpace(query)
	variants := []string{query}
	for _, v := range []string{cases.Title(language.English).String(query), strings.ToUpper(query)} {
		if slices.Contains(variants, v) || (v == strings.ToUpper(query) && len([]rune(query)) > 5) {
			continue
		}
		variants = append(variants, v)
	}

	literals := make([]string, len(variants))
	for i, v := range variants {
		literals[i] = `"` + sparqlEscaper.Replace(v) + `"@en`
	}
	return fmt.Sprintf(wikidataQuery, strings.Join(literals, " "), maxResults)
}
