package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/infrastructure/config"
)

const sparqlJSON = `{"results":{"bindings":[
	{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q312"},
	 "itemLabel":{"value":"Apple Inc."},
	 "itemDescription":{"value":"American technology company"},
	 "article":{"value":"https://en.wikipedia.org/wiki/Apple_Inc."}},
	{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q312"},
	 "itemLabel":{"value":"Apple Inc."},
	 "article":{"value":"https://en.wikipedia.org/wiki/Apple_Computer"}},
	{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q89"},
	 "itemLabel":{"value":"apple"}}
]}}`

func TestWikidata_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
		assert.Contains(t, r.URL.Query().Get("query"), `"apple inc"@en`)
		_, _ = w.Write([]byte(sparqlJSON))
	}))
	defer srv.Close()
	p := NewWikidata(config.ProviderConfig{Endpoint: srv.URL}, srv.Client())

	results, err := p.Search(context.Background(), "apple inc")

	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Apple Inc.", results[0].Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Apple_Inc.", results[0].URL)
	assert.Equal(t, "American technology company", results[0].Snippet)
	assert.Equal(t, "Q312", results[0].Metadata["wikidata_id"])
	assert.Equal(t, "http://www.wikidata.org/entity/Q312", results[0].Metadata["wikidata_url"])

	assert.Equal(t, "http://www.wikidata.org/entity/Q89", results[1].URL)
	assert.Equal(t, "Wikidata entity: apple", results[1].Snippet)
	assert.InDelta(t, 0.9, results[1].RelevanceScore, 1e-9)
}

func TestWikidata_Search_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	p := NewWikidata(config.ProviderConfig{Endpoint: srv.URL}, srv.Client())

	_, err := p.Search(context.Background(), "apple")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 429")
}

func TestBuildSPARQL(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "short query adds title and upper case",
			query:    "ibm",
			contains: []string{`"ibm"@en`, `"Ibm"@en`, `"IBM"@en`},
		},
		{
			name:     "long query skips upper case",
			query:    "tim cook",
			contains: []string{`"tim cook"@en`, `"Tim Cook"@en`},
			excludes: []string{`"TIM COOK"@en`},
		},
		{
			name:     "quotes are escaped",
			query:    `a"b`,
			contains: []string{`"a\"b"@en`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := buildSPARQL(tt.query)
			for _, s := range tt.contains {
				assert.Contains(t, q, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, q, s)
			}
			assert.Contains(t, q, "LIMIT 10")
		})
	}
}
