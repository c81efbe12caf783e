package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

func TestLookupHandler_Handle(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, f.entitySvc)
	ctx := context.Background()

	out, err := h.Handle(ctx, "Nvidia", "company", false)

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.Equal(t, entities.MentionOrg, out.Kind)
	assert.Equal(t, "wiki", out.Provider)
	assert.False(t, out.Cached)

	out, err = h.Handle(ctx, "nvidia ", "org", false)

	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, 1, f.provider.CallCount())

	_, err = h.Handle(ctx, "nvidia", "org", true)

	require.NoError(t, err)
	assert.Equal(t, 2, f.provider.CallCount())
}

func TestLookupHandler_Handle_EmptyQuery(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, nil)

	_, err := h.Handle(context.Background(), " ", "", false)

	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestLookupHandler_SeedPopulateStatus(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "queries.csv",
		"surface_form,kind\nNvidia,org\nJensen Huang,person\nnvidia,org\n")

	seeded, err := h.HandleSeed(ctx, path, "")

	require.NoError(t, err)
	assert.Equal(t, 3, seeded.Read)
	assert.Equal(t, 2, seeded.Added)

	report, err := h.HandleStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pending)

	populated, err := h.HandlePopulate(ctx, services.PopulateOptions{Workers: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, populated.Processed)
	assert.Equal(t, 2, populated.Found)

	report, err = h.HandleStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pending)
	assert.Equal(t, 2, report.PendingTotal)
	require.Len(t, report.Counts, 1)
	assert.Equal(t, entities.CacheOK, report.Counts[0].Status)
	assert.Equal(t, 2, report.Counts[0].Count)
}

func TestLookupHandler_Seed_KindOverride(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, nil)
	path := writeFile(t, t.TempDir(), "tickers.txt", "NVDA\nMSFT\n")

	seeded, err := h.HandleSeed(context.Background(), path, "symbol")

	require.NoError(t, err)
	assert.Equal(t, 2, seeded.Added)
	for _, p := range f.cache.Pending {
		assert.Equal(t, entities.MentionSymbol, p.Kind)
	}
}

func TestLookupHandler_Seed_FileNotFound(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, nil)

	_, err := h.HandleSeed(context.Background(), "/nonexistent/queries.txt", "")

	assert.Error(t, err)
}

func TestLookupHandler_Promote(t *testing.T) {
	f := newGroundingFixture(t)
	h := NewLookupHandler(f.lookup, f.entitySvc)
	ctx := context.Background()
	_, err := h.Handle(ctx, "Nvidia", "org", false)
	require.NoError(t, err)

	e, err := h.HandlePromote(ctx, PromoteRequest{Provider: "wiki", Query: "Nvidia", Index: 0, Type: "org"})

	require.NoError(t, err)
	assert.Equal(t, "Nvidia", e.CanonicalFull)
	require.NotNil(t, e.Profile)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Nvidia", e.Profile.Website)

	res, err := NewResolveHandler(f.resolver).Handle(ctx, ResolveRequest{Query: "Nvidia", Kind: "org"})
	require.NoError(t, err)
	assert.Equal(t, e.ID, res.EntityID)
}

func TestLookupHandler_Promote_Errors(t *testing.T) {
	f := newGroundingFixture(t)
	ctx := context.Background()
	_, err := NewLookupHandler(f.lookup, f.entitySvc).Handle(ctx, "Nvidia", "org", false)
	require.NoError(t, err)

	tests := []struct {
		name    string
		handler *LookupHandler
		req     PromoteRequest
		target  error
	}{
		{"no entity service", NewLookupHandler(f.lookup, nil), PromoteRequest{Provider: "wiki", Query: "Nvidia", Type: "org"}, nil},
		{"invalid type", NewLookupHandler(f.lookup, f.entitySvc), PromoteRequest{Provider: "wiki", Query: "Nvidia", Type: "planet"}, entities.ErrValidation},
		{"no entry", NewLookupHandler(f.lookup, f.entitySvc), PromoteRequest{Provider: "other", Query: "Nvidia", Type: "org"}, entities.ErrNotFound},
		{"index out of range", NewLookupHandler(f.lookup, f.entitySvc), PromoteRequest{Provider: "wiki", Query: "Nvidia", Index: 3, Type: "org"}, entities.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.handler.HandlePromote(ctx, tt.req)

			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}
