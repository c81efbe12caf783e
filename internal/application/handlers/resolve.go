package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

// ResolveHandler handles single mention resolution against the local store.
type ResolveHandler struct {
	resolver *services.Resolver
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(resolver *services.Resolver) *ResolveHandler {
	return &ResolveHandler{
		resolver: resolver,
	}
}

// ResolveRequest is one mention with its optional source context.
type ResolveRequest struct {
	Query    string
	Kind     string
	SourceID string
	Symbols  []string // Symbols mentioned in the same article
	Text     string
}

// Mention converts the request into a domain mention.
func (r ResolveRequest) Mention() entities.Mention {
	return entities.Mention{
		SurfaceForm: r.Query,
		Kind:        entities.ParseMentionKind(r.Kind),
		Context: entities.SourceContext{
			SourceID: r.SourceID,
			Symbols:  r.Symbols,
			Text:     r.Text,
		},
	}
}

// Handle resolves the mention.
func (h *ResolveHandler) Handle(ctx context.Context, req ResolveRequest) (*entities.Resolution, error) {
	res, err := h.resolver.Resolve(ctx, req.Mention())
	if err != nil {
		return nil, fmt.Errorf("resolving mention: %w", err)
	}
	return res, nil
}
