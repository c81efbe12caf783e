package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

func TestResolverConfig_Defaults(t *testing.T) {
	assert.Equal(t, services.DefaultResolverConfig(), resolverConfig(config.ResolverConfig{}))
}

func TestResolverConfig_Overrides(t *testing.T) {
	rc := resolverConfig(config.ResolverConfig{
		SymbolThreshold: 0.99,
		AmbiguityMargin: 0.1,
		CandidateLimit:  3,
	})

	assert.InDelta(t, 0.99, rc.SymbolThreshold, 1e-9)
	assert.InDelta(t, 0.1, rc.AmbiguityMargin, 1e-9)
	assert.Equal(t, 3, rc.CandidateLimit)
	assert.InDelta(t, services.DefaultResolverConfig().AliasThreshold, rc.AliasThreshold, 1e-9)
}

func TestCascadeConfig_Defaults(t *testing.T) {
	cc := cascadeConfig(&config.Config{})

	assert.Equal(t, services.DefaultCascadeConfig(), cc)
}

func TestCascadeConfig_Overrides(t *testing.T) {
	cfg := &config.Config{
		Lookup: config.LookupConfig{
			Order:   []string{"wikidata"},
			ByKind:  map[string][]string{"ticker": {"finnhub"}},
			Timeout: 5 * time.Second,
			Backoff: config.BackoffConfig{Base: time.Minute, MaxAttempts: 2},
		},
		Providers: map[string]config.ProviderConfig{"google_cse": {DailyQuota: 10}},
	}

	cc := cascadeConfig(cfg)

	assert.Equal(t, []string{"wikidata"}, cc.Default)
	assert.Equal(t, []string{"finnhub"}, cc.Order(entities.MentionSymbol))
	assert.Equal(t, []string{"wikidata"}, cc.Order(entities.MentionPerson))
	assert.Equal(t, 5*time.Second, cc.Timeout)
	assert.Equal(t, time.Minute, cc.Backoff.Base)
	assert.Equal(t, services.DefaultBackoffPolicy().Max, cc.Backoff.Max)
	assert.Equal(t, 2, cc.Backoff.MaxAttempts)
	assert.Equal(t, map[string]int{"google_cse": 10}, cc.DailyQuota)
}

func TestOpenQueue(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory", func(t *testing.T) {
		q, closer, err := openQueue(ctx, config.WorkersConfig{}, logger)
		require.NoError(t, err)
		require.NoError(t, closer.Close())

		require.NoError(t, q.Push(ctx, entities.Mention{SurfaceForm: "Apple", Kind: entities.MentionOrg}))
		m, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Apple", m.SurfaceForm)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)

		q, closer, err := openQueue(ctx, config.WorkersConfig{Queue: "redis", RedisURL: "redis://" + mr.Addr(), RedisKey: "mentions"}, logger)
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, q.Push(ctx, entities.Mention{SurfaceForm: "NVDA", Kind: entities.MentionSymbol}))
		assert.True(t, mr.Exists("mentions"))
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := openQueue(ctx, config.WorkersConfig{Queue: "kafka"}, logger)
		assert.ErrorContains(t, err, "unknown queue")
	})
}
