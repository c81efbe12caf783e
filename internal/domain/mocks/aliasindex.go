package mocks

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// AliasIndex is a mock implementation of ports.AliasIndex.
type AliasIndex struct {
	Aliases []entities.Alias
	Matches []entities.AliasMatch
	Err     error

	// Call tracking
	SaveBatchCallCount int
	DeletedIDs         []string
	LastEmbedding      []float32
}

// Save records the alias.
func (m *AliasIndex) Save(_ context.Context, alias entities.Alias, _ []float32) error {
	if m.Err != nil {
		return m.Err
	}
	m.Aliases = append(m.Aliases, alias)
	return nil
}

// SaveBatch records the aliases.
func (m *AliasIndex) SaveBatch(_ context.Context, aliases []entities.Alias, _ [][]float32) error {
	m.SaveBatchCallCount++
	if m.Err != nil {
		return m.Err
	}
	m.Aliases = append(m.Aliases, aliases...)
	return nil
}

// Search returns the configured matches.
func (m *AliasIndex) Search(_ context.Context, embedding []float32, limit int) ([]entities.AliasMatch, error) {
	m.LastEmbedding = embedding
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Matches) > limit {
		return m.Matches[:limit], nil
	}
	return m.Matches, nil
}

// Delete records the deleted alias ID.
func (m *AliasIndex) Delete(_ context.Context, aliasID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.DeletedIDs = append(m.DeletedIDs, aliasID)
	return nil
}
