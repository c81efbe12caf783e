package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// LookupCache is an in-memory mock implementation of ports.LookupCacheStore.
type LookupCache struct {
	mu sync.Mutex

	Entries map[string]entities.CacheEntry
	Usage   map[string]int
	Pending map[string]entities.PendingLookup
	Err     error

	// Call tracking
	SaveCallCount int
	History       []entities.CacheEntry
}

// NewLookupCache creates a new mock LookupCache.
func NewLookupCache() *LookupCache {
	return &LookupCache{
		Entries: make(map[string]entities.CacheEntry),
		Usage:   make(map[string]int),
		Pending: make(map[string]entities.PendingLookup),
	}
}

func cacheKey(provider, normalized string) string {
	return provider + "\x00" + normalized
}

// GetCacheEntry returns a copy of the stored entry or nil.
func (m *LookupCache) GetCacheEntry(_ context.Context, provider, normalized string) (*entities.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.Entries[cacheKey(provider, normalized)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// SaveCacheEntry stores the entry and records it in History.
func (m *LookupCache) SaveCacheEntry(_ context.Context, entry *entities.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SaveCallCount++
	m.Entries[cacheKey(entry.Provider, entry.NormalizedQuery)] = *entry
	m.History = append(m.History, *entry)
	return nil
}

// ListCacheEntries lists entries for a query sorted by provider.
func (m *LookupCache) ListCacheEntries(_ context.Context, normalized string) ([]entities.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.CacheEntry
	for _, e := range m.Entries {
		if e.NormalizedQuery == normalized {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, m.Err
}

// CacheStatusCounts counts entries per provider and status.
func (m *LookupCache) CacheStatusCounts(_ context.Context) ([]entities.ProviderStatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[[2]string]int)
	for _, e := range m.Entries {
		counts[[2]string{e.Provider, string(e.Status)}]++
	}
	var result []entities.ProviderStatusCount
	for k, n := range counts {
		result = append(result, entities.ProviderStatusCount{Provider: k[0], Status: entities.CacheStatus(k[1]), Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Provider != result[j].Provider {
			return result[i].Provider < result[j].Provider
		}
		return result[i].Status < result[j].Status
	})
	return result, m.Err
}

// BackoffSummary counts entries in backoff.
func (m *LookupCache) BackoffSummary(_ context.Context, now time.Time) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int
	var earliest *time.Time
	for _, e := range m.Entries {
		if !e.InBackoff(now) {
			continue
		}
		count++
		if earliest == nil || e.BackoffUntil.Before(*earliest) {
			t := *e.BackoffUntil
			earliest = &t
		}
	}
	return count, earliest, m.Err
}

// IncrementProviderUsage records a live call.
func (m *LookupCache) IncrementProviderUsage(_ context.Context, provider, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Usage[provider+"|"+day]++
	return m.Usage[provider+"|"+day], nil
}

// ProviderUsage returns the live call count.
func (m *LookupCache) ProviderUsage(_ context.Context, provider, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Usage[provider+"|"+day], m.Err
}

// ListProviderUsage returns usage for day.
func (m *LookupCache) ListProviderUsage(_ context.Context, day string) ([]entities.ProviderUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.ProviderUsage
	for k, n := range m.Usage {
		provider, d, _ := strings.Cut(k, "|")
		if d == day {
			result = append(result, entities.ProviderUsage{Provider: provider, Day: d, Calls: n})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, m.Err
}

// AddPending queues queries, keeping existing keys.
func (m *LookupCache) AddPending(_ context.Context, pending []entities.PendingLookup) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	added := 0
	for _, p := range pending {
		if _, ok := m.Pending[p.NormalizedQuery]; ok {
			continue
		}
		m.Pending[p.NormalizedQuery] = p
		added++
	}
	return added, nil
}

// ListPending lists open pending queries oldest first.
func (m *LookupCache) ListPending(_ context.Context, limit int) ([]entities.PendingLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.PendingLookup
	for _, p := range m.Pending {
		if p.ResolvedAt == nil {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].NormalizedQuery < result[j].NormalizedQuery
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, m.Err
}

// MarkPendingResolved marks a pending query processed.
func (m *LookupCache) MarkPendingResolved(_ context.Context, normalized string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Pending[normalized]; ok {
		t := at
		p.ResolvedAt = &t
		m.Pending[normalized] = p
	}
	return m.Err
}

// CountPending returns open and total pending counts.
func (m *LookupCache) CountPending(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := 0
	for _, p := range m.Pending {
		if p.ResolvedAt == nil {
			open++
		}
	}
	return open, len(m.Pending), m.Err
}
