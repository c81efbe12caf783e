package ports

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// Provider is an external knowledge source queried by the lookup cascade.
// Failures are returned as *entities.ProviderError. An empty result slice
// with a nil error means the provider answered with no hits.
type Provider interface {
	// Name returns the stable provider name used in cache keys.
	Name() string

	// Search queries the provider.
	Search(ctx context.Context, query string) ([]entities.SearchResult, error)
}

// CandidateSearcher is an approximate text search over alias text.
type CandidateSearcher interface {
	// Name identifies the searcher in candidate reasons.
	Name() string

	// SearchAliases returns matches ordered by descending score in [0, 1].
	SearchAliases(ctx context.Context, query string, limit int) ([]entities.AliasMatch, error)
}
