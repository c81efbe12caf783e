package handlers

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/domain/services"
)

// IndexHandler handles maintenance of the semantic alias index.
type IndexHandler struct {
	semantic *services.SemanticIndex
	store    ports.EntityStore
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(semantic *services.SemanticIndex, store ports.EntityStore) *IndexHandler {
	return &IndexHandler{
		semantic: semantic,
		store:    store,
	}
}

// HandleRebuild re-embeds every alias and returns how many were indexed.
func (h *IndexHandler) HandleRebuild(ctx context.Context) (int, error) {
	return h.semantic.Rebuild(ctx, h.store)
}
