package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/normalize"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// Provider names with built-in defaults.
const (
	ProviderWikipedia  = "wikipedia"
	ProviderWikidata   = "wikidata"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderGoogleCSE  = "google_cse"
	ProviderFinnhub    = "finnhub"
)

// Reasons reported on lookups that found nothing.
const (
	ReasonAllEmpty      = "all_providers_empty"
	ReasonBackoff       = "providers_in_backoff"
	ReasonProviderError = "provider_errors"
	ReasonNoProviders   = "no_providers"
)

// CascadeConfig controls provider order, timeouts and backoff.
type CascadeConfig struct {
	// Default is the provider order for every kind without its own entry.
	Default []string
	// ByKind overrides the order for specific mention kinds.
	ByKind     map[entities.MentionKind][]string
	Timeout    time.Duration
	Backoff    BackoffPolicy
	DailyQuota map[string]int
}

// DefaultCascadeConfig queries structured knowledge sources before web
// search, and skips the encyclopedic ones for symbols.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		Default: []string{ProviderWikipedia, ProviderWikidata, ProviderDuckDuckGo, ProviderGoogleCSE},
		ByKind: map[entities.MentionKind][]string{
			entities.MentionSymbol: {ProviderFinnhub, ProviderDuckDuckGo, ProviderGoogleCSE},
		},
		Timeout:    15 * time.Second,
		Backoff:    DefaultBackoffPolicy(),
		DailyQuota: map[string]int{ProviderGoogleCSE: 100},
	}
}

// Order returns the provider order for a mention kind.
func (c CascadeConfig) Order(kind entities.MentionKind) []string {
	if order, ok := c.ByKind[kind]; ok {
		return order
	}
	return c.Default
}

// LookupRequest is one query to the cascade.
type LookupRequest struct {
	Query string
	Kind  entities.MentionKind
	// Force bypasses cached ok and empty entries. Backoff still applies.
	Force bool
}

// LookupService queries external providers in cascade order behind a
// persistent cache with per-key backoff.
type LookupService struct {
	cache     ports.LookupCacheStore
	providers map[string]ports.Provider
	config    CascadeConfig
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewLookupService creates a new LookupService.
func NewLookupService(cache ports.LookupCacheStore, providers []ports.Provider, config CascadeConfig, logger *slog.Logger) *LookupService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	byName := make(map[string]ports.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &LookupService{
		cache:     cache,
		providers: byName,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Providers returns the names of registered providers in default order.
func (s *LookupService) Providers() []string {
	seen := make(map[string]bool)
	var names []string
	orders := [][]string{s.config.Default}
	for _, o := range s.config.ByKind {
		orders = append(orders, o)
	}
	for _, order := range orders {
		for _, name := range order {
			if _, ok := s.providers[name]; ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Lookup runs the cascade for a query. Provider failures are reported in
// the outcome; only invalid input and storage failures return errors.
//
// Concurrent lookups for the same key share one cascade. The cascade is
// detached from ctx so a caller giving up still leaves the cache populated.
func (s *LookupService) Lookup(ctx context.Context, req LookupRequest) (*entities.LookupOutcome, error) {
	normalized := normalize.Query(req.Query)
	if normalized == "" {
		return nil, &entities.ValidationError{Field: "query", Message: "missing required field: query"}
	}
	if req.Kind == "" {
		req.Kind = entities.MentionOther
	}

	key := fmt.Sprintf("%s|%s|%t", req.Kind, normalized, req.Force)
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.cascade(detached, req, normalized)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*entities.LookupOutcome)
		out.Query = req.Query
		return &out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *LookupService) cascade(ctx context.Context, req LookupRequest, normalized string) (*entities.LookupOutcome, error) {
	out := &entities.LookupOutcome{
		Query:           req.Query,
		NormalizedQuery: normalized,
		Kind:            req.Kind,
		Status:          entities.LookupNotFound,
	}

	var answered, failed, deferred int
	for _, name := range s.config.Order(req.Kind) {
		provider, ok := s.providers[name]
		if !ok {
			continue
		}

		entry, err := s.cache.GetCacheEntry(ctx, name, normalized)
		if err != nil {
			return nil, fmt.Errorf("reading lookup cache: %w", err)
		}
		now := s.now()

		if entry != nil {
			switch {
			case entry.Status == entities.CacheOK && !req.Force:
				out.Attempts = append(out.Attempts, entities.ProviderAttempt{Provider: name, Action: entities.AttemptCacheHit, Status: entry.Status})
				out.Status = entities.LookupFound
				out.Provider = name
				out.Entry = entry
				out.Cached = true
				s.logger.Debug("lookup cache hit", "provider", name, "query", normalized)
				return out, nil
			case entry.Status == entities.CacheEmpty && !req.Force:
				out.Attempts = append(out.Attempts, entities.ProviderAttempt{Provider: name, Action: entities.AttemptSkipped, Status: entry.Status})
				answered++
				continue
			case entry.InBackoff(now):
				out.Attempts = append(out.Attempts, entities.ProviderAttempt{Provider: name, Action: entities.AttemptBackoff, Status: entry.Status, Error: entry.Error})
				out.RetryAfter = earliest(out.RetryAfter, entry.BackoffUntil)
				deferred++
				s.logger.Debug("provider in backoff", "provider", name, "query", normalized, "until", entry.BackoffUntil)
				continue
			}
		}

		exhausted, err := s.quotaExhausted(ctx, name, now)
		if err != nil {
			return nil, err
		}
		if exhausted {
			saved, err := s.recordQuotaExhausted(ctx, name, req.Query, normalized, entry, now)
			if err != nil {
				return nil, err
			}
			out.Attempts = append(out.Attempts, entities.ProviderAttempt{Provider: name, Action: entities.AttemptExhausted, Status: saved.Status, Error: saved.Error})
			out.RetryAfter = earliest(out.RetryAfter, saved.BackoffUntil)
			deferred++
			continue
		}

		saved, err := s.callProvider(ctx, provider, req.Query, normalized, entry)
		if errors.Is(err, entities.ErrProviderThrottled) {
			out.Attempts = append(out.Attempts, entities.ProviderAttempt{Provider: name, Action: entities.AttemptThrottled, Error: err.Error()})
			deferred++
			s.logger.Debug("provider throttled locally", "provider", name, "query", normalized, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		attempt := entities.ProviderAttempt{Provider: name, Action: entities.AttemptLiveCall, Status: saved.Status, Error: saved.Error}
		out.Attempts = append(out.Attempts, attempt)

		switch saved.Status {
		case entities.CacheOK:
			out.Status = entities.LookupFound
			out.Provider = name
			out.Entry = saved
			return out, nil
		case entities.CacheEmpty:
			answered++
		default:
			out.RetryAfter = earliest(out.RetryAfter, saved.BackoffUntil)
			failed++
		}
	}

	switch {
	case answered == 0 && failed == 0 && deferred == 0:
		out.Reason = ReasonNoProviders
	case failed > 0:
		out.Status = entities.LookupDeferred
		out.Reason = ReasonProviderError
	case deferred > 0:
		out.Status = entities.LookupDeferred
		out.Reason = ReasonBackoff
	default:
		out.Reason = ReasonAllEmpty
	}
	s.logger.Info("lookup unresolved", "query", normalized, "kind", req.Kind, "reason", out.Reason, "retry_after", out.RetryAfter)
	return out, nil
}

// callProvider performs one live call and persists its outcome. A call the
// provider's pacer held back is returned as entities.ErrProviderThrottled
// and leaves both the cache and the usage counter untouched.
func (s *LookupService) callProvider(ctx context.Context, p ports.Provider, query, normalized string, prev *entities.CacheEntry) (*entities.CacheEntry, error) {
	callCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	results, callErr := p.Search(callCtx, normalized)
	if errors.Is(callErr, entities.ErrProviderThrottled) {
		return nil, callErr
	}
	now := s.now()
	if _, err := s.cache.IncrementProviderUsage(ctx, p.Name(), now.Format(time.DateOnly)); err != nil {
		return nil, fmt.Errorf("recording provider usage: %w", err)
	}

	entry := &entities.CacheEntry{
		Provider:        p.Name(),
		NormalizedQuery: normalized,
		Query:           query,
		FetchedAt:       now,
	}

	switch {
	case callErr == nil && len(results) > 0:
		entry.Status = entities.CacheOK
		entry.Results = results
	case callErr == nil:
		entry.Status = entities.CacheEmpty
	default:
		entry.Status = entities.CacheError
		entry.Error = callErr.Error()
		var perr *entities.ProviderError
		if errors.As(callErr, &perr) {
			entry.HTTPCode = perr.HTTPCode
			if perr.RateLimited {
				entry.Status = entities.CacheRateLimited
			}
		}
		var prevUntil *time.Time
		if prev != nil {
			entry.Attempts = prev.Attempts
			prevUntil = prev.BackoffUntil
		}
		entry.Attempts++
		until := s.config.Backoff.Next(now, entry.Attempts, prevUntil)
		entry.BackoffUntil = &until
		s.logger.Warn("provider call failed",
			"provider", p.Name(), "query", normalized, "status", entry.Status,
			"attempts", entry.Attempts, "backoff_until", until, "error", callErr)
	}

	if err := s.cache.SaveCacheEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving lookup cache: %w", err)
	}
	s.logger.Debug("provider called", "provider", p.Name(), "query", normalized, "status", entry.Status, "results", len(entry.Results))
	return entry, nil
}

func (s *LookupService) quotaExhausted(ctx context.Context, provider string, now time.Time) (bool, error) {
	quota := s.config.DailyQuota[provider]
	if quota <= 0 {
		return false, nil
	}
	used, err := s.cache.ProviderUsage(ctx, provider, now.Format(time.DateOnly))
	if err != nil {
		return false, fmt.Errorf("reading provider usage: %w", err)
	}
	return used >= quota, nil
}

// recordQuotaExhausted stores a ratelimited entry that waits at least
// until the quota resets at the next UTC midnight.
func (s *LookupService) recordQuotaExhausted(ctx context.Context, provider, query, normalized string, prev *entities.CacheEntry, now time.Time) (*entities.CacheEntry, error) {
	entry := &entities.CacheEntry{
		Provider:        provider,
		NormalizedQuery: normalized,
		Query:           query,
		Status:          entities.CacheRateLimited,
		HTTPCode:        429,
		Error:           fmt.Sprintf("daily quota of %d calls exhausted", s.config.DailyQuota[provider]),
		FetchedAt:       now,
	}
	var prevUntil *time.Time
	if prev != nil {
		entry.Attempts = prev.Attempts
		prevUntil = prev.BackoffUntil
	}
	entry.Attempts++
	until := s.config.Backoff.Next(now, entry.Attempts, prevUntil)
	if reset := nextUTCMidnight(now); until.Before(reset) {
		until = reset
	}
	entry.BackoffUntil = &until

	if err := s.cache.SaveCacheEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving lookup cache: %w", err)
	}
	s.logger.Info("provider quota exhausted", "provider", provider, "until", until)
	return entry, nil
}

func nextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}

func earliest(cur, candidate *time.Time) *time.Time {
	if candidate == nil {
		return cur
	}
	if cur == nil || candidate.Before(*cur) {
		t := *candidate
		return &t
	}
	return cur
}

// CachedEntries returns every provider entry for a query.
func (s *LookupService) CachedEntries(ctx context.Context, query string) ([]entities.CacheEntry, error) {
	return s.cache.ListCacheEntries(ctx, normalize.Query(query))
}

// Report summarizes cache contents, today's provider usage, backoff and
// pending queries.
func (s *LookupService) Report(ctx context.Context) (*entities.CacheReport, error) {
	now := s.now()
	counts, err := s.cache.CacheStatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}
	usage, err := s.cache.ListProviderUsage(ctx, now.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("listing provider usage: %w", err)
	}
	inBackoff, next, err := s.cache.BackoffSummary(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("summarizing backoff: %w", err)
	}
	open, total, err := s.cache.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting pending: %w", err)
	}
	return &entities.CacheReport{
		Counts:       counts,
		Usage:        usage,
		InBackoff:    inBackoff,
		NextRetryAt:  next,
		Pending:      open,
		PendingTotal: total,
	}, nil
}

// Seed queues queries for a later Populate run. Duplicate normalized
// queries are stored once.
func (s *LookupService) Seed(ctx context.Context, queries []string, kind entities.MentionKind) (int, error) {
	now := s.now()
	seen := make(map[string]bool, len(queries))
	pending := make([]entities.PendingLookup, 0, len(queries))
	for _, q := range queries {
		n := normalize.Query(q)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		pending = append(pending, entities.PendingLookup{
			NormalizedQuery: n,
			Query:           strings.TrimSpace(q),
			Kind:            kind,
			CreatedAt:       now,
		})
	}
	added, err := s.cache.AddPending(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("adding pending lookups: %w", err)
	}
	return added, nil
}

// PopulateOptions controls a Populate run.
type PopulateOptions struct {
	Limit   int
	Workers int
	Force   bool
}

// PopulateResult counts the outcomes of a Populate run.
type PopulateResult struct {
	Processed int
	Found     int
	NotFound  int
	Deferred  int
}

// Populate runs the cascade for pending queries. Queries that were
// deferred by backoff or provider errors stay pending.
func (s *LookupService) Populate(ctx context.Context, opts PopulateOptions) (*PopulateResult, error) {
	pending, err := s.cache.ListPending(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending lookups: %w", err)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]entities.LookupStatus, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pending {
		g.Go(func() error {
			out, err := s.Lookup(gctx, LookupRequest{Query: p.Query, Kind: p.Kind, Force: opts.Force})
			if err != nil {
				return fmt.Errorf("looking up %q: %w", p.Query, err)
			}
			outcomes[i] = out.Status
			if out.Status == entities.LookupDeferred {
				return nil
			}
			if err := s.cache.MarkPendingResolved(gctx, p.NormalizedQuery, s.now()); err != nil {
				return fmt.Errorf("marking %q resolved: %w", p.Query, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &PopulateResult{Processed: len(pending)}
	for _, st := range outcomes {
		switch st {
		case entities.LookupFound:
			result.Found++
		case entities.LookupNotFound:
			result.NotFound++
		case entities.LookupDeferred:
			result.Deferred++
		}
	}
	return result, nil
}
