package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/mocks"
)

func newSemanticFixture() (*SemanticIndex, *mocks.Embedder, *mocks.AliasIndex, *mocks.CollectionManager) {
	emb := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2, 0.3}}
	index := &mocks.AliasIndex{}
	collections := &mocks.CollectionManager{}
	return NewSemanticIndex(emb, index, collections, 3, nil), emb, index, collections
}

func TestSemanticIndex_SearchAliases(t *testing.T) {
	sem, emb, index, _ := newSemanticFixture()
	index.Matches = []entities.AliasMatch{
		{AliasID: "a1", EntityID: "apple", Normalized: "apple inc", Score: 0.9},
		{AliasID: "a2", EntityID: "hosp", Normalized: "apple hospitality reit", Score: 0.7},
	}

	matches, err := sem.SearchAliases(context.Background(), "apple", 1)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "apple", matches[0].EntityID)
	assert.Equal(t, []string{"apple"}, emb.Texts)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, index.LastEmbedding)
	assert.Equal(t, "semantic", sem.Name())
}

func TestSemanticIndex_SearchAliases_Empty(t *testing.T) {
	sem, emb, _, _ := newSemanticFixture()

	matches, err := sem.SearchAliases(context.Background(), "", 5)

	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, emb.Texts)
}

func TestSemanticIndex_SearchAliases_EmbedError(t *testing.T) {
	sem, emb, _, _ := newSemanticFixture()
	emb.Err = errors.New("quota")

	_, err := sem.SearchAliases(context.Background(), "apple", 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
}

func TestSemanticIndex_IndexAliases_SkipsSymbols(t *testing.T) {
	sem, emb, index, _ := newSemanticFixture()

	err := sem.IndexAliases(context.Background(), []entities.Alias{
		{ID: "a1", Type: entities.AliasLongName, Normalized: "apple inc"},
		{ID: "a2", Type: entities.AliasSymbol, Normalized: "AAPL"},
		{ID: "a3", Type: entities.AliasTickerOld, Normalized: "APPL"},
		{ID: "a4", Type: entities.AliasShortName, Normalized: "apple"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"apple inc", "apple"}, emb.Texts)
	require.Len(t, index.Aliases, 2)
	assert.Equal(t, "a1", index.Aliases[0].ID)
	assert.Equal(t, "a4", index.Aliases[1].ID)
}

func TestSemanticIndex_IndexAliases_OnlySymbols(t *testing.T) {
	sem, emb, index, _ := newSemanticFixture()

	err := sem.IndexAliases(context.Background(), []entities.Alias{{ID: "a2", Type: entities.AliasSymbol, Normalized: "AAPL"}})

	require.NoError(t, err)
	assert.Empty(t, emb.Texts)
	assert.Zero(t, index.SaveBatchCallCount)
}

func TestSemanticIndex_RemoveAlias(t *testing.T) {
	sem, _, index, _ := newSemanticFixture()

	require.NoError(t, sem.RemoveAlias(context.Background(), "a1"))
	assert.Equal(t, []string{"a1"}, index.DeletedIDs)

	index.Err = errors.New("down")
	assert.Error(t, sem.RemoveAlias(context.Background(), "a2"))
}

func TestSemanticIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	sem, _, index, collections := newSemanticFixture()
	collections.DeleteErr = errors.New("collection not found")

	store := mocks.NewEntityStore()
	svc := NewEntityService(store, nil)
	for i := 0; i < rebuildPageSize+5; i++ {
		org := mustOrg(t, svc, fmt.Sprintf("Company %03d", i))
		_, err := svc.AddAlias(ctx, AliasInput{EntityID: org.ID, Text: fmt.Sprintf("Company %03d", i), Type: entities.AliasLongName, Confidence: 1})
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.AddAlias(ctx, AliasInput{EntityID: org.ID, Text: "CMPA", Type: entities.AliasSymbol, Confidence: 1})
			require.NoError(t, err)
		}
	}

	indexed, err := sem.Rebuild(ctx, store)

	require.NoError(t, err)
	assert.Equal(t, rebuildPageSize+5, indexed)
	assert.Len(t, index.Aliases, rebuildPageSize+5)
	assert.Equal(t, 2, index.SaveBatchCallCount)
	assert.Equal(t, 1, collections.DeleteCollectionCallCount)
	assert.Equal(t, uint64(3), collections.LastVectorSize)
}

func TestSemanticIndex_Rebuild_EnsureError(t *testing.T) {
	sem, _, _, collections := newSemanticFixture()
	collections.EnsureErr = errors.New("unavailable")

	_, err := sem.Rebuild(context.Background(), mocks.NewEntityStore())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating alias collection")
}

func TestSemanticIndex_AsIndexer(t *testing.T) {
	ctx := context.Background()
	sem, _, index, _ := newSemanticFixture()
	svc := NewEntityService(mocks.NewEntityStore(), nil).WithAliasIndexer(sem)

	org := mustOrg(t, svc, "NVIDIA Corporation")
	alias, err := svc.AddAlias(ctx, AliasInput{EntityID: org.ID, Text: "Nvidia", Type: entities.AliasShortName, Confidence: 0.9})
	require.NoError(t, err)

	require.Len(t, index.Aliases, 1)
	assert.Equal(t, alias.ID, index.Aliases[0].ID)
}
