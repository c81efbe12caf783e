package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/mocks"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/domain/services"
)

func newTestWatchState(t *testing.T) (*watchState, *bytes.Buffer, *entities.Entity) {
	t.Helper()
	ctx := context.Background()
	store := mocks.NewEntityStore()
	entitySvc := services.NewEntityService(store, nil)

	apple, err := entitySvc.UpsertEntity(ctx, &entities.Entity{Type: entities.EntityOrg, CanonicalFull: "Apple Inc.", DisplayName: "Apple"})
	require.NoError(t, err)
	_, err = entitySvc.AddAlias(ctx, services.AliasInput{
		EntityID: apple.ID, Text: "AAPL", Type: entities.AliasSymbol, PrimaryExchange: "NASDAQ", IsPrimary: true, Confidence: 1,
	})
	require.NoError(t, err)

	provider := mocks.NewProvider("wiki", entities.SearchResult{
		Title:          "Nvidia",
		URL:            "https://en.wikipedia.org/wiki/Nvidia",
		RelevanceScore: 1,
	})
	resolver := services.NewResolver(store, services.DefaultResolverConfig(), nil)
	lookup := services.NewLookupService(mocks.NewLookupCache(), []ports.Provider{provider},
		services.CascadeConfig{Default: []string{"wiki"}, Backoff: services.DefaultBackoffPolicy()}, nil)

	var out bytes.Buffer
	state := newWatchState(handlers.NewResolveHandler(resolver), handlers.NewLookupHandler(lookup, entitySvc), &out)
	return state, &out, apple
}

func TestWatchState_ResolveSymbol(t *testing.T) {
	state, out, apple := newTestWatchState(t)
	ctx := context.Background()

	_, err := state.handleLine(ctx, "kind ticker")
	require.NoError(t, err)
	done, err := state.handleLine(ctx, "AAPL")

	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, out.String(), "Kind: symbol")
	assert.Contains(t, out.String(), "resolved -> "+apple.ID)
	assert.Equal(t, entities.MentionSymbol, state.lastKind)
}

func TestWatchState_LookupAndPromote(t *testing.T) {
	state, out, _ := newTestWatchState(t)
	ctx := context.Background()

	for _, line := range []string{"kind org", "Nvidia", "lookup", "promote 0"} {
		_, err := state.handleLine(ctx, line)
		require.NoError(t, err, line)
	}

	assert.Contains(t, out.String(), "unresolved")
	assert.Contains(t, out.String(), "Type 'lookup' to search the providers.")
	assert.Contains(t, out.String(), "found via wiki")
	assert.Contains(t, out.String(), "0. Nvidia https://en.wikipedia.org/wiki/Nvidia")
	assert.Contains(t, out.String(), "Created org Nvidia")

	out.Reset()
	_, err := state.handleLine(ctx, "Nvidia")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "resolved"))
}

func TestWatchState_Errors(t *testing.T) {
	state, _, _ := newTestWatchState(t)
	ctx := context.Background()

	_, err := state.handleLine(ctx, "lookup")
	assert.ErrorContains(t, err, "no mention to look up")

	_, err = state.handleLine(ctx, "promote 0")
	assert.ErrorContains(t, err, "no lookup results")

	_, err = state.handleLine(ctx, "kind org")
	require.NoError(t, err)
	for _, line := range []string{"Nvidia", "lookup"} {
		_, err := state.handleLine(ctx, line)
		require.NoError(t, err)
	}

	_, err = state.handleLine(ctx, "promote")
	assert.ErrorContains(t, err, "usage")

	_, err = state.handleLine(ctx, "promote x")
	assert.ErrorContains(t, err, "invalid result number")
}

func TestWatchState_Symbols(t *testing.T) {
	state, out, _ := newTestWatchState(t)

	_, err := state.handleLine(context.Background(), "symbols AAPL, ,MSFT")

	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, state.symbols)
	assert.Contains(t, out.String(), "Context symbols: AAPL, MSFT")
}

func TestWatchState_RunInputLoop(t *testing.T) {
	state, out, _ := newTestWatchState(t)

	err := state.runInputLoop(context.Background(), strings.NewReader("help\n\nkind ticker\nAAPL\nquit\nMSFT\n"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Commands:")
	assert.Contains(t, out.String(), "resolved")
	assert.Contains(t, out.String(), "Goodbye!")
	assert.Empty(t, state.symbols)
	assert.Equal(t, "AAPL", state.lastMention)
}

func TestWatchState_RunInputLoop_EOF(t *testing.T) {
	state, out, _ := newTestWatchState(t)

	err := state.runInputLoop(context.Background(), strings.NewReader("   \n"))

	require.NoError(t, err)
	assert.NotContains(t, out.String(), "Goodbye!")
}

func TestDefaultEntityType(t *testing.T) {
	assert.Equal(t, "person", defaultEntityType(entities.MentionPerson))
	assert.Equal(t, "fund", defaultEntityType(entities.MentionFund))
	assert.Equal(t, "org", defaultEntityType(entities.MentionSymbol))
	assert.Equal(t, "org", defaultEntityType(entities.MentionOther))
}
