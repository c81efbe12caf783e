package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

const wikiSearchJSON = `{"query":{"search":[
	{"title":"Tim Cook","pageid":101,"snippet":"<span class=\"searchmatch\">Tim</span> <span class=\"searchmatch\">Cook</span> is an American business executive &amp; engineer","wordcount":5000},
	{"title":"Cook (surname)","pageid":102,"snippet":"Cook is a surname","wordcount":300}
]}}`

const wikiExtractJSON = `{"query":{"pages":{
	"101":{"pageid":101,"title":"Tim Cook","extract":"Timothy Donald Cook is an American business executive who is the CEO of Apple Inc. "},
	"102":{"pageid":102,"title":"Cook (surname)","extract":""}
}}}`

func wikipediaServer(t *testing.T, extractStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		switch {
		case q.Get("list") == "search":
			calls = append(calls, "search")
			assert.Equal(t, "tim cook", q.Get("srsearch"))
			assert.Equal(t, "10", q.Get("srlimit"))
			assert.Equal(t, "0", q.Get("srnamespace"))
			_, _ = w.Write([]byte(wikiSearchJSON))
		case q.Get("prop") == "extracts":
			calls = append(calls, "extracts")
			assert.Equal(t, "101|102", q.Get("pageids"))
			assert.Equal(t, "5", q.Get("exsentences"))
			w.WriteHeader(extractStatus)
			_, _ = w.Write([]byte(wikiExtractJSON))
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestWikipedia_Search(t *testing.T) {
	srv, calls := wikipediaServer(t, http.StatusOK)
	p := NewWikipedia(config.ProviderConfig{Endpoint: srv.URL, UserAgent: "test-agent"}, srv.Client())

	results, err := p.Search(context.Background(), "tim cook")

	require.NoError(t, err)
	assert.Equal(t, []string{"search", "extracts"}, *calls)
	require.Len(t, results, 2)

	assert.Equal(t, "Tim Cook", results[0].Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Tim_Cook", results[0].URL)
	assert.Equal(t, "Timothy Donald Cook is an American business executive who is the CEO of Apple Inc.", results[0].Snippet)
	assert.InDelta(t, 1.0, results[0].RelevanceScore, 1e-9)
	assert.Equal(t, "101", results[0].Metadata["pageid"])

	assert.Equal(t, "https://en.wikipedia.org/wiki/Cook_(surname)", results[1].URL)
	assert.Equal(t, "Cook is a surname", results[1].Snippet)
	assert.InDelta(t, 0.9, results[1].RelevanceScore, 1e-9)
}

func TestWikipedia_Search_ExtractFailureKeepsSnippets(t *testing.T) {
	srv, _ := wikipediaServer(t, http.StatusInternalServerError)
	p := NewWikipedia(config.ProviderConfig{Endpoint: srv.URL, UserAgent: "test-agent"}, srv.Client())

	results, err := p.Search(context.Background(), "tim cook")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Tim Cook is an American business executive & engineer", results[0].Snippet)
}

func TestWikipedia_Search_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"search":[]}}`))
	}))
	defer srv.Close()
	p := NewWikipedia(config.ProviderConfig{Endpoint: srv.URL}, srv.Client())

	results, err := p.Search(context.Background(), "zzqx")

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWikipedia_Search_HTTPErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			p := NewWikipedia(config.ProviderConfig{Endpoint: srv.URL}, srv.Client())

			_, err := p.Search(context.Background(), "tim cook")

			var perr *entities.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "wikipedia", perr.Provider)
			assert.Equal(t, tt.status, perr.HTTPCode)
			assert.Equal(t, tt.rateLimited, perr.RateLimited)
		})
	}
}

func TestWikipedia_Search_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()
	p := NewWikipedia(config.ProviderConfig{Endpoint: srv.URL}, srv.Client())

	_, err := p.Search(context.Background(), "tim cook")

	assert.ErrorIs(t, err, entities.ErrProviderFailed)
}

func TestCleanSnippet(t *testing.T) {
	assert.Equal(t, "Apple Inc. & co", cleanSnippet(` <span class="searchmatch">Apple</span> Inc. &amp; co `))
}
