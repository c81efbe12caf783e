package ports

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// AliasIndex defines vector storage for alias embeddings.
type AliasIndex interface {
	// Save stores an alias with its embedding.
	Save(ctx context.Context, alias entities.Alias, embedding []float32) error

	// SaveBatch stores multiple aliases with their embeddings.
	SaveBatch(ctx context.Context, aliases []entities.Alias, embeddings [][]float32) error

	// Search performs a semantic search and returns the closest aliases.
	Search(ctx context.Context, embedding []float32, limit int) ([]entities.AliasMatch, error)

	// Delete removes an alias by its ID.
	Delete(ctx context.Context, aliasID string) error
}
