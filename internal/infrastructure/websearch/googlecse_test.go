package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

func TestNewGoogleCSE_RequiresCredentials(t *testing.T) {
	_, err := NewGoogleCSE(config.ProviderConfig{APIKey: "k"}, nil)
	assert.Error(t, err)

	_, err = NewGoogleCSE(config.ProviderConfig{EngineID: "cx"}, nil)
	assert.Error(t, err)

	p, err := NewGoogleCSE(config.ProviderConfig{APIKey: "k", EngineID: "cx"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "google_cse", p.Name())
}

func TestGoogleCSE_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "engine", q.Get("cx"))
		assert.Equal(t, "jensen huang", q.Get("q"))
		assert.Equal(t, "10", q.Get("num"))
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Jensen Huang - Wikipedia","link":"https://en.wikipedia.org/wiki/Jensen_Huang","snippet":"Taiwanese-American businessman","displayLink":"en.wikipedia.org"},
			{"title":"NVIDIA Leadership","link":"https://www.nvidia.com/leadership","snippet":"Founder and CEO"}
		]}`))
	}))
	defer srv.Close()
	p, err := NewGoogleCSE(config.ProviderConfig{Endpoint: srv.URL, APIKey: "secret", EngineID: "engine"}, srv.Client())
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "jensen huang")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Jensen_Huang", results[0].URL)
	assert.Equal(t, "en.wikipedia.org", results[0].Metadata["display_link"])
	assert.InDelta(t, 0.9, results[1].RelevanceScore, 1e-9)
}

func TestGoogleCSE_Search_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()
	p, err := NewGoogleCSE(config.ProviderConfig{Endpoint: srv.URL, APIKey: "k", EngineID: "cx"}, srv.Client())
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "zzqx")

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGoogleCSE_Search_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}{
		{"too many requests", http.StatusTooManyRequests, `{}`, true},
		{"daily quota", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"dailyLimitExceeded"}]}}`, true},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"errors":[{"reason":"accessNotConfigured"}]}}`, false},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"errors":[{"reason":"invalid"}]}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			p, err := NewGoogleCSE(config.ProviderConfig{Endpoint: srv.URL, APIKey: "k", EngineID: "cx"}, srv.Client())
			require.NoError(t, err)

			_, err = p.Search(context.Background(), "x")

			var perr *entities.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.HTTPCode)
			assert.Equal(t, tt.rateLimited, perr.RateLimited)
		})
	}
}

func TestGoogleCSE_Search_KeyNotInTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()
	p, err := NewGoogleCSE(config.ProviderConfig{Endpoint: endpoint, APIKey: "very-secret", EngineID: "cx"}, nil)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "x")

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret")
}

func TestGoogleCSE_Search_PacerDeadlineSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()
	p, err := NewGoogleCSE(config.ProviderConfig{Endpoint: srv.URL, APIKey: "k", EngineID: "cx", RPS: 0.01}, srv.Client())
	require.NoError(t, err)
	_, err = p.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Search(ctx, "second")

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrProviderThrottled)
	assert.NotErrorIs(t, err, entities.ErrProviderFailed)
	assert.Equal(t, int32(1), hits.Load())
}
