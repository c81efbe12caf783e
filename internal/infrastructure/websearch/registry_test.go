package websearch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/infrastructure/config"
)

func providerNames(cfgs map[string]config.ProviderConfig) []string {
	var names []string
	for _, p := range NewProviders(cfgs, nil, nil) {
		names = append(names, p.Name())
	}
	return names
}

func TestNewProviders_Defaults(t *testing.T) {
	names := providerNames(config.DefaultProviders())

	// google_cse and finnhub have no credentials by default.
	assert.Equal(t, []string{"duckduckgo", "wikidata", "wikipedia"}, names)
}

func TestNewProviders_WithCredentials(t *testing.T) {
	cfgs := config.DefaultProviders()
	g := cfgs["google_cse"]
	g.APIKey, g.EngineID = "k", "cx"
	cfgs["google_cse"] = g
	f := cfgs["finnhub"]
	f.APIKey = "t"
	cfgs["finnhub"] = f

	names := providerNames(cfgs)

	assert.Equal(t, []string{"duckduckgo", "finnhub", "google_cse", "wikidata", "wikipedia"}, names)
}

func TestNewProviders_DisabledAndUnknown(t *testing.T) {
	off := false
	cfgs := map[string]config.ProviderConfig{
		"wikipedia": {Enabled: &off},
		"wikidata":  {},
		"bing":      {},
	}

	assert.Equal(t, []string{"wikidata"}, providerNames(cfgs))
}

func TestPacer_NilNeverWaits(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.Wait(context.Background()))
	assert.Nil(t, NewPacer(0))
}

func TestPacer_Spacing(t *testing.T) {
	p := NewPacer(50)
	require.NotNil(t, p)
	p.jitter = func() float64 { return 1 }

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))

	// Burst of one: the second and third calls each wait ~20ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(0.01)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, p.Wait(ctx))
}

func TestPacer_JitterRange(t *testing.T) {
	p := NewPacer(1)
	for range 100 {
		j := p.jitter()
		assert.GreaterOrEqual(t, j, jitterMin)
		assert.Less(t, j, jitterMax)
	}
}

func TestRelevance(t *testing.T) {
	assert.InDelta(t, 1.0, relevance(0, 0.1), 1e-9)
	assert.InDelta(t, 0.5, relevance(5, 0.1), 1e-9)
	assert.InDelta(t, 0.1, relevance(9, 0.1), 1e-9)
	assert.InDelta(t, 0.1, relevance(12, 0.15), 1e-9)
}
