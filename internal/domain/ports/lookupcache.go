package ports

import (
	"context"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// LookupCacheStore persists provider results keyed by (provider, normalized query).
type LookupCacheStore interface {
	// GetCacheEntry returns the entry for a key, or nil when absent.
	GetCacheEntry(ctx context.Context, provider, normalizedQuery string) (*entities.CacheEntry, error)

	// SaveCacheEntry inserts or replaces the entry for its key.
	SaveCacheEntry(ctx context.Context, entry *entities.CacheEntry) error

	// ListCacheEntries lists all provider entries for a normalized query.
	ListCacheEntries(ctx context.Context, normalizedQuery string) ([]entities.CacheEntry, error)

	// CacheStatusCounts counts entries per provider and status.
	CacheStatusCounts(ctx context.Context) ([]entities.ProviderStatusCount, error)

	// BackoffSummary counts entries still in backoff at now and returns the
	// earliest backoff_until among them.
	BackoffSummary(ctx context.Context, now time.Time) (int, *time.Time, error)

	// IncrementProviderUsage records one live call for provider on day.
	IncrementProviderUsage(ctx context.Context, provider, day string) (int, error)

	// ProviderUsage returns the live call count for provider on day.
	ProviderUsage(ctx context.Context, provider, day string) (int, error)

	// ListProviderUsage returns usage for all providers on day.
	ListProviderUsage(ctx context.Context, day string) ([]entities.ProviderUsage, error)

	// AddPending queues queries for later population. Existing keys are kept.
	AddPending(ctx context.Context, pending []entities.PendingLookup) (int, error)

	// ListPending lists queries not yet resolved, oldest first.
	ListPending(ctx context.Context, limit int) ([]entities.PendingLookup, error)

	// MarkPendingResolved marks a pending query as processed.
	MarkPendingResolved(ctx context.Context, normalizedQuery string, at time.Time) error

	// CountPending returns open and total pending counts.
	CountPending(ctx context.Context) (int, int, error)
}
