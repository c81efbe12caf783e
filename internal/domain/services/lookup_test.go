package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/mocks"
	"github.com/ersonp/newsground/internal/domain/ports"
)

var lookupNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type lookupFixture struct {
	cache *mocks.LookupCache
	svc   *LookupService
	now   time.Time
}

func newLookupFixture(config CascadeConfig, providers ...ports.Provider) *lookupFixture {
	f := &lookupFixture{cache: mocks.NewLookupCache(), now: lookupNow}
	f.svc = NewLookupService(f.cache, providers, config, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func testCascade(order ...string) CascadeConfig {
	return CascadeConfig{Default: order, Backoff: DefaultBackoffPolicy()}
}

func rateLimited(provider string) error {
	return &entities.ProviderError{Provider: provider, HTTPCode: 429, RateLimited: true, Err: errors.New("too many requests")}
}

var cookResult = entities.SearchResult{Title: "Tim Cook", URL: "https://en.wikipedia.org/wiki/Tim_Cook", RelevanceScore: 1}

func TestLookupService_Lookup_ShortCircuits(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	b := mocks.NewProvider("b", cookResult)
	f := newLookupFixture(testCascade("a", "b"), a, b)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook", Kind: entities.MentionPerson})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.Equal(t, "a", out.Provider)
	assert.False(t, out.Cached)
	assert.Equal(t, "tim cook", out.NormalizedQuery)
	assert.Equal(t, []string{"tim cook"}, a.Queries)
	assert.Equal(t, 0, b.CallCount())
	assert.Equal(t, 1, f.cache.Usage["a|2026-03-02"])
}

func TestLookupService_Lookup_CacheHitMakesNoCalls(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	f := newLookupFixture(testCascade("a"), a)

	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)
	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "  tim   COOK "})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.True(t, out.Cached)
	assert.Equal(t, "  tim   COOK ", out.Query)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, entities.AttemptCacheHit, out.Attempts[0].Action)
	assert.Equal(t, 1, a.CallCount())
}

func TestLookupService_Lookup_CachedEmptyIsSkipped(t *testing.T) {
	a := mocks.NewProvider("a")
	b := mocks.NewProvider("b")
	f := newLookupFixture(testCascade("a", "b"), a, b)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, entities.LookupNotFound, out.Status)
	assert.Equal(t, ReasonAllEmpty, out.Reason)

	out, err = f.svc.Lookup(context.Background(), LookupRequest{Query: "Globex"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupNotFound, out.Status)
	assert.Equal(t, ReasonAllEmpty, out.Reason)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
	for _, at := range out.Attempts {
		assert.Equal(t, entities.AttemptSkipped, at.Action)
	}
}

func TestLookupService_Lookup_ErrorStartsBackoff(t *testing.T) {
	a := mocks.NewFailingProvider("a", rateLimited("a"))
	f := newLookupFixture(testCascade("a"), a)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupDeferred, out.Status)
	assert.Equal(t, ReasonProviderError, out.Reason)
	require.NotNil(t, out.RetryAfter)
	assert.Equal(t, lookupNow.Add(15*time.Minute), *out.RetryAfter)

	entry := f.cache.Entries["a\x00tim cook"]
	assert.Equal(t, entities.CacheRateLimited, entry.Status)
	assert.Equal(t, 429, entry.HTTPCode)
	assert.Equal(t, 1, entry.Attempts)
}

func TestLookupService_Lookup_BackoffSkipsProvider(t *testing.T) {
	a := mocks.NewFailingProvider("a", rateLimited("a"))
	f := newLookupFixture(testCascade("a"), a)
	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)

	f.now = lookupNow.Add(5 * time.Minute)
	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook", Force: true})

	require.NoError(t, err)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, entities.LookupDeferred, out.Status)
	assert.Equal(t, ReasonBackoff, out.Reason)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, entities.AttemptBackoff, out.Attempts[0].Action)
	require.NotNil(t, out.RetryAfter)
	assert.Equal(t, lookupNow.Add(15*time.Minute), *out.RetryAfter)
}

func TestLookupService_Lookup_BackoffGrowsMonotonically(t *testing.T) {
	a := mocks.NewFailingProvider("a", errors.New("connection reset"))
	f := newLookupFixture(testCascade("a"), a)

	var prev time.Time
	for i := 1; i <= 6; i++ {
		_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
		require.NoError(t, err)

		entry := f.cache.Entries["a\x00tim cook"]
		assert.Equal(t, entities.CacheError, entry.Status)
		assert.Equal(t, i, entry.Attempts)
		require.NotNil(t, entry.BackoffUntil)
		assert.True(t, entry.BackoffUntil.After(prev), "attempt %d", i)
		prev = *entry.BackoffUntil

		f.now = prev
	}
	assert.Equal(t, 6, a.CallCount())
}

func TestLookupService_Lookup_RateLimitedBackoffGrowsMonotonically(t *testing.T) {
	a := mocks.NewFailingProvider("a", rateLimited("a"))
	f := newLookupFixture(testCascade("a"), a)

	var prev time.Time
	for i := 1; i <= 6; i++ {
		_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
		require.NoError(t, err)

		entry := f.cache.Entries["a\x00tim cook"]
		assert.Equal(t, entities.CacheRateLimited, entry.Status)
		assert.Equal(t, i, entry.Attempts)
		require.NotNil(t, entry.BackoffUntil)
		assert.True(t, entry.BackoffUntil.After(prev), "attempt %d", i)
		assert.LessOrEqual(t, entry.BackoffUntil.Sub(f.now), time.Hour)
		prev = *entry.BackoffUntil

		f.now = prev
	}
	assert.Equal(t, 6, a.CallCount())
}

func TestLookupService_Lookup_ThrottledLeavesNoTrace(t *testing.T) {
	throttled := fmt.Errorf("provider a: %w: %w", entities.ErrProviderThrottled, context.DeadlineExceeded)
	a := mocks.NewFailingProvider("a", throttled)
	b := mocks.NewProvider("b", cookResult)
	config := testCascade("a", "b")
	config.DailyQuota = map[string]int{"a": 1}
	f := newLookupFixture(config, a, b)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.Equal(t, "b", out.Provider)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, entities.AttemptThrottled, out.Attempts[0].Action)
	assert.Contains(t, out.Attempts[0].Error, "local pacer")

	_, saved := f.cache.Entries["a\x00tim cook"]
	assert.False(t, saved)
	assert.Zero(t, f.cache.Usage["a|2026-03-02"])
	assert.Equal(t, 1, f.cache.Usage["b|2026-03-02"])
}

func TestLookupService_Lookup_ThrottledOnlyProviderDefers(t *testing.T) {
	a := mocks.NewFailingProvider("a", fmt.Errorf("provider a: %w", entities.ErrProviderThrottled))
	f := newLookupFixture(testCascade("a"), a)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)
	assert.Equal(t, entities.LookupDeferred, out.Status)
	assert.Equal(t, ReasonBackoff, out.Reason)
	assert.Nil(t, out.RetryAfter)

	// Nothing was cached, so the next lookup calls the provider again.
	_, err = f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.CallCount())
	assert.Empty(t, f.cache.Entries)
}

func TestLookupService_Lookup_SuccessResetsAttempts(t *testing.T) {
	a := &mocks.Provider{ProviderName: "a", Responses: []mocks.ProviderResponse{
		{Err: errors.New("timeout")},
		{Results: []entities.SearchResult{cookResult}},
	}}
	f := newLookupFixture(testCascade("a"), a)
	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)

	f.now = lookupNow.Add(time.Hour)
	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	entry := f.cache.Entries["a\x00tim cook"]
	assert.Equal(t, 0, entry.Attempts)
	assert.Nil(t, entry.BackoffUntil)
}

func TestLookupService_Lookup_ForceBypassesCachedResults(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	f := newLookupFixture(testCascade("a"), a)
	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook", Force: true})

	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, 2, a.CallCount())
}

func TestLookupService_Lookup_ContinuesPastFailure(t *testing.T) {
	a := mocks.NewFailingProvider("a", errors.New("boom"))
	b := mocks.NewProvider("b", cookResult)
	f := newLookupFixture(testCascade("a", "b"), a, b)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.Equal(t, "b", out.Provider)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, entities.CacheError, out.Attempts[0].Status)
}

func TestLookupService_Lookup_QuotaExhausted(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	config := testCascade("a")
	config.DailyQuota = map[string]int{"a": 1}
	f := newLookupFixture(config, a)

	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)
	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Lisa Su"})

	require.NoError(t, err)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, entities.LookupDeferred, out.Status)
	assert.Equal(t, ReasonBackoff, out.Reason)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, entities.AttemptExhausted, out.Attempts[0].Action)

	entry := f.cache.Entries["a\x00lisa su"]
	assert.Equal(t, entities.CacheRateLimited, entry.Status)
	assert.Equal(t, 429, entry.HTTPCode)
	assert.Equal(t, 1, entry.Attempts)
	require.NotNil(t, entry.BackoffUntil)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), *entry.BackoffUntil)

	f.now = time.Date(2026, 3, 3, 0, 0, 1, 0, time.UTC)
	out, err = f.svc.Lookup(context.Background(), LookupRequest{Query: "Lisa Su"})
	require.NoError(t, err)
	assert.Equal(t, entities.LookupFound, out.Status)
	assert.Equal(t, 2, a.CallCount())
}

func TestLookupService_Lookup_QuotaExhaustedCountsAttempts(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	config := testCascade("a")
	config.DailyQuota = map[string]int{"a": 1}
	f := newLookupFixture(config, a)
	f.cache.Usage["a|2026-03-02"] = 1
	expired := lookupNow.Add(-time.Minute)
	f.cache.Entries["a\x00tim cook"] = entities.CacheEntry{
		Provider: "a", NormalizedQuery: "tim cook", Status: entities.CacheError,
		Attempts: 2, BackoffUntil: &expired,
	}

	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Zero(t, a.CallCount())
	entry := f.cache.Entries["a\x00tim cook"]
	assert.Equal(t, entities.CacheRateLimited, entry.Status)
	assert.Equal(t, 3, entry.Attempts)
	require.NotNil(t, entry.BackoffUntil)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), *entry.BackoffUntil)
}

func TestLookupService_Lookup_KindOrder(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	sym := mocks.NewProvider("sym", cookResult)
	config := testCascade("a")
	config.ByKind = map[entities.MentionKind][]string{entities.MentionSymbol: {"sym"}}
	f := newLookupFixture(config, a, sym)

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "AAPL", Kind: entities.MentionSymbol})

	require.NoError(t, err)
	assert.Equal(t, "sym", out.Provider)
	assert.Equal(t, 0, a.CallCount())
	assert.ElementsMatch(t, []string{"a", "sym"}, f.svc.Providers())
}

func TestLookupService_Lookup_NoProviders(t *testing.T) {
	f := newLookupFixture(testCascade("missing"))

	out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	require.NoError(t, err)
	assert.Equal(t, entities.LookupNotFound, out.Status)
	assert.Equal(t, ReasonNoProviders, out.Reason)
}

func TestLookupService_Lookup_Validation(t *testing.T) {
	f := newLookupFixture(testCascade("a"), mocks.NewProvider("a"))

	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "  "})

	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestLookupService_Lookup_CacheError(t *testing.T) {
	f := newLookupFixture(testCascade("a"), mocks.NewProvider("a"))
	f.cache.Err = assert.AnError

	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestLookupService_Lookup_ConcurrentCallersShareCascade(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	a.Block = make(chan struct{})
	f := newLookupFixture(testCascade("a"), a)

	var wg sync.WaitGroup
	outs := make([]*entities.LookupOutcome, 4)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
			assert.NoError(t, err)
			outs[i] = out
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(a.Block)
	wg.Wait()

	assert.Equal(t, 1, a.CallCount())
	for _, out := range outs {
		require.NotNil(t, out)
		assert.Equal(t, entities.LookupFound, out.Status)
	}
}

func TestLookupService_Lookup_CallerCancelKeepsCascade(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	a.Block = make(chan struct{})
	f := newLookupFixture(testCascade("a"), a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Lookup(ctx, LookupRequest{Query: "Tim Cook"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(a.Block)
	assert.Eventually(t, func() bool {
		entry, err := f.cache.GetCacheEntry(context.Background(), "a", "tim cook")
		return err == nil && entry != nil && entry.Status == entities.CacheOK
	}, time.Second, 10*time.Millisecond)
}

func TestLookupService_SeedAndPopulate(t *testing.T) {
	a := mocks.NewProvider("a", cookResult)
	f := newLookupFixture(testCascade("a"), a)

	added, err := f.svc.Seed(context.Background(), []string{"Tim Cook", "tim  cook", "Lisa Su", " "}, entities.MentionPerson)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	result, err := f.svc.Populate(context.Background(), PopulateOptions{Workers: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Found)
	open, total, err := f.cache.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, open)
	assert.Equal(t, 2, total)
}

func TestLookupService_Populate_DeferredStaysPending(t *testing.T) {
	a := mocks.NewFailingProvider("a", rateLimited("a"))
	f := newLookupFixture(testCascade("a"), a)
	_, err := f.svc.Seed(context.Background(), []string{"Tim Cook"}, entities.MentionPerson)
	require.NoError(t, err)

	result, err := f.svc.Populate(context.Background(), PopulateOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Deferred)
	open, _, err := f.cache.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestLookupService_Report(t *testing.T) {
	a := mocks.NewFailingProvider("a", rateLimited("a"))
	b := mocks.NewProvider("b", cookResult)
	f := newLookupFixture(testCascade("a", "b"), a, b)
	_, err := f.svc.Lookup(context.Background(), LookupRequest{Query: "Tim Cook"})
	require.NoError(t, err)
	_, err = f.svc.Seed(context.Background(), []string{"Lisa Su"}, entities.MentionPerson)
	require.NoError(t, err)

	report, err := f.svc.Report(context.Background())

	require.NoError(t, err)
	assert.Len(t, report.Counts, 2)
	assert.Len(t, report.Usage, 2)
	assert.Equal(t, 1, report.InBackoff)
	require.NotNil(t, report.NextRetryAt)
	assert.Equal(t, lookupNow.Add(15*time.Minute), *report.NextRetryAt)
	assert.Equal(t, 1, report.Pending)

	entries, err := f.svc.CachedEntries(context.Background(), "TIM COOK")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
