package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// rebuildPageSize is the number of entities read per page during a rebuild.
const rebuildPageSize = 200

// SemanticIndex keeps alias embeddings in a vector index and searches them.
// It serves as both an AliasIndexer and a full-text CandidateSearcher.
type SemanticIndex struct {
	embedder    ports.Embedder
	index       ports.AliasIndex
	collections ports.CollectionManager
	vectorSize  uint64
	logger      *slog.Logger
}

// NewSemanticIndex creates a SemanticIndex.
func NewSemanticIndex(embedder ports.Embedder, index ports.AliasIndex, collections ports.CollectionManager, vectorSize uint64, logger *slog.Logger) *SemanticIndex {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SemanticIndex{
		embedder:    embedder,
		index:       index,
		collections: collections,
		vectorSize:  vectorSize,
		logger:      logger,
	}
}

// Name identifies the searcher in candidate reasons.
func (s *SemanticIndex) Name() string {
	return "semantic"
}

// SearchAliases embeds the query and returns the closest aliases.
func (s *SemanticIndex) SearchAliases(ctx context.Context, query string, limit int) ([]entities.AliasMatch, error) {
	if query == "" {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := s.index.Search(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("searching alias index: %w", err)
	}
	return matches, nil
}

// indexable reports whether an alias carries meaning an embedding can capture.
// Ticker symbols are matched exactly by the symbol tier instead.
func indexable(a entities.Alias) bool {
	return a.Type != entities.AliasSymbol && a.Type != entities.AliasTickerOld
}

// IndexAliases embeds and stores aliases. Symbol aliases are skipped.
func (s *SemanticIndex) IndexAliases(ctx context.Context, aliases []entities.Alias) error {
	batch := make([]entities.Alias, 0, len(aliases))
	texts := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if indexable(a) {
			batch = append(batch, a)
			texts = append(texts, a.Normalized)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding aliases: %w", err)
	}
	if err := s.index.SaveBatch(ctx, batch, vecs); err != nil {
		return fmt.Errorf("saving aliases: %w", err)
	}
	return nil
}

// RemoveAlias deletes an alias from the index.
func (s *SemanticIndex) RemoveAlias(ctx context.Context, aliasID string) error {
	if err := s.index.Delete(ctx, aliasID); err != nil {
		return fmt.Errorf("removing alias: %w", err)
	}
	return nil
}

// Rebuild drops the collection and re-indexes every alias in the store.
// It returns the number of aliases indexed.
func (s *SemanticIndex) Rebuild(ctx context.Context, store ports.EntityStore) (int, error) {
	if err := s.collections.DeleteCollection(ctx); err != nil {
		s.logger.Warn("dropping alias collection failed", "error", err)
	}
	if err := s.collections.EnsureCollection(ctx, s.vectorSize); err != nil {
		return 0, fmt.Errorf("creating alias collection: %w", err)
	}

	indexed := 0
	for offset := 0; ; offset += rebuildPageSize {
		page, err := store.ListEntities(ctx, "", rebuildPageSize, offset)
		if err != nil {
			return indexed, fmt.Errorf("listing entities: %w", err)
		}

		var aliases []entities.Alias
		for _, e := range page {
			list, err := store.ListAliases(ctx, e.ID)
			if err != nil {
				return indexed, fmt.Errorf("listing aliases of %s: %w", e.ID, err)
			}
			for _, a := range list {
				if indexable(a) {
					aliases = append(aliases, a)
				}
			}
		}
		if err := s.IndexAliases(ctx, aliases); err != nil {
			return indexed, err
		}
		indexed += len(aliases)
		s.logger.Debug("indexed alias page", "offset", offset, "entities", len(page), "aliases", len(aliases))

		if len(page) < rebuildPageSize {
			break
		}
	}

	s.logger.Info("alias index rebuilt", "aliases", indexed)
	return indexed, nil
}
