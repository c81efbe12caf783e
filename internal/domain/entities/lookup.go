package entities

import "time"

// CacheStatus is the outcome class of one provider call.
type CacheStatus string

const (
	CacheOK          CacheStatus = "ok"
	CacheEmpty       CacheStatus = "empty"
	CacheError       CacheStatus = "error"
	CacheRateLimited CacheStatus = "ratelimited"
)

// IsValid reports whether s is a known cache status.
func (s CacheStatus) IsValid() bool {
	switch s {
	case CacheOK, CacheEmpty, CacheError, CacheRateLimited:
		return true
	}
	return false
}

// Retryable reports whether entries with this status are subject to backoff.
func (s CacheStatus) Retryable() bool {
	return s == CacheError || s == CacheRateLimited
}

// SearchResult is one hit returned by a lookup provider.
type SearchResult struct {
	Title          string            `json:"title"`
	URL            string            `json:"url,omitempty"`
	Snippet        string            `json:"snippet,omitempty"`
	RelevanceScore float64           `json:"relevance_score,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CacheEntry is the stored outcome of calling one provider for one query.
// (Provider, NormalizedQuery) is unique.
type CacheEntry struct {
	Provider        string         `json:"provider"`
	NormalizedQuery string         `json:"normalized_query"`
	Query           string         `json:"query,omitempty"`
	Status          CacheStatus    `json:"status"`
	Results         []SearchResult `json:"results,omitempty"`
	HTTPCode        int            `json:"http_code,omitempty"`
	Error           string         `json:"error,omitempty"`
	FetchedAt       time.Time      `json:"fetched_at"`
	Attempts        int            `json:"attempts"`
	BackoffUntil    *time.Time     `json:"backoff_until,omitempty"`
}

// InBackoff reports whether the entry should not be retried at now.
func (c *CacheEntry) InBackoff(now time.Time) bool {
	return c.Status.Retryable() && c.BackoffUntil != nil && now.Before(*c.BackoffUntil)
}

// LookupStatus is the overall outcome of a lookup cascade.
type LookupStatus string

const (
	LookupFound    LookupStatus = "found"
	LookupNotFound LookupStatus = "not_found"
	LookupDeferred LookupStatus = "deferred"
)

// ProviderAttempt records what the cascade did with one provider.
type ProviderAttempt struct {
	Provider string      `json:"provider"`
	Action   string      `json:"action"`
	Status   CacheStatus `json:"status,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Cascade attempt actions.
const (
	AttemptCacheHit  = "cache_hit"
	AttemptSkipped   = "skipped"
	AttemptBackoff   = "backoff"
	AttemptLiveCall  = "live_call"
	AttemptExhausted = "quota_exhausted"
	AttemptThrottled = "throttled"
)

// LookupOutcome is the result of a lookup cascade.
// Provider failures are reported here, not as errors.
type LookupOutcome struct {
	Query           string            `json:"query"`
	NormalizedQuery string            `json:"normalized_query"`
	Kind            MentionKind       `json:"kind"`
	Status          LookupStatus      `json:"status"`
	Provider        string            `json:"provider,omitempty"`
	Entry           *CacheEntry       `json:"entry,omitempty"`
	Cached          bool              `json:"cached"`
	Attempts        []ProviderAttempt `json:"attempts"`
	RetryAfter      *time.Time        `json:"retry_after,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

// PendingLookup is a query queued for bulk population.
type PendingLookup struct {
	NormalizedQuery string      `json:"normalized_query"`
	Query           string      `json:"query"`
	Kind            MentionKind `json:"kind"`
	CreatedAt       time.Time   `json:"created_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
}

// ProviderStatusCount is one row of the cache status report.
type ProviderStatusCount struct {
	Provider string      `json:"provider"`
	Status   CacheStatus `json:"status"`
	Count    int         `json:"count"`
}

// ProviderUsage counts live calls to a provider on one UTC day.
type ProviderUsage struct {
	Provider string `json:"provider"`
	Day      string `json:"day"`
	Calls    int    `json:"calls"`
}

// CacheReport summarizes the lookup cache.
type CacheReport struct {
	Counts       []ProviderStatusCount `json:"counts"`
	Usage        []ProviderUsage       `json:"usage"`
	InBackoff    int                   `json:"in_backoff"`
	NextRetryAt  *time.Time            `json:"next_retry_at,omitempty"`
	Pending      int                   `json:"pending"`
	PendingTotal int                   `json:"pending_total"`
}
