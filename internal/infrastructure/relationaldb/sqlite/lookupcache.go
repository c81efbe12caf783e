package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
)

const cacheColumns = `provider, normalized_query, query, status, results, http_code, error,
	fetched_at, attempts, backoff_until`

func scanCacheEntry(row rowScanner) (*entities.CacheEntry, error) {
	var e entities.CacheEntry
	var results, backoffUntil sql.NullString
	var fetchedAt string
	if err := row.Scan(
		&e.Provider, &e.NormalizedQuery, &e.Query, &e.Status, &results, &e.HTTPCode, &e.Error,
		&fetchedAt, &e.Attempts, &backoffUntil,
	); err != nil {
		return nil, err
	}
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &e.Results); err != nil {
			return nil, fmt.Errorf("unmarshaling results: %w", err)
		}
	}
	var err error
	if e.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, err
	}
	if e.BackoffUntil, err = parseNullTime(backoffUntil); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetCacheEntry returns the entry for a key, or nil when absent.
func (r *Repository) GetCacheEntry(ctx context.Context, provider, normalizedQuery string) (*entities.CacheEntry, error) {
	e, err := scanCacheEntry(r.db.QueryRowContext(ctx, `
		SELECT `+cacheColumns+` FROM lookup_cache
		WHERE provider = ? AND normalized_query = ?
	`, provider, normalizedQuery))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning cache entry: %w", err)
	}
	return e, nil
}

// SaveCacheEntry inserts or replaces the entry for its key.
func (r *Repository) SaveCacheEntry(ctx context.Context, entry *entities.CacheEntry) error {
	var results sql.NullString
	if len(entry.Results) > 0 {
		data, err := json.Marshal(entry.Results)
		if err != nil {
			return fmt.Errorf("marshaling results: %w", err)
		}
		results = sql.NullString{String: string(data), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (`+cacheColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, normalized_query) DO UPDATE SET
			query = excluded.query,
			status = excluded.status,
			results = excluded.results,
			http_code = excluded.http_code,
			error = excluded.error,
			fetched_at = excluded.fetched_at,
			attempts = excluded.attempts,
			backoff_until = excluded.backoff_until
	`, entry.Provider, entry.NormalizedQuery, entry.Query, string(entry.Status), results, entry.HTTPCode, entry.Error,
		formatTime(entry.FetchedAt), entry.Attempts, nullTime(entry.BackoffUntil))
	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

// ListCacheEntries lists all provider entries for a normalized query.
func (r *Repository) ListCacheEntries(ctx context.Context, normalizedQuery string) ([]entities.CacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cacheColumns+` FROM lookup_cache
		WHERE normalized_query = ?
		ORDER BY provider
	`, normalizedQuery)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var result []entities.CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// CacheStatusCounts counts entries per provider and status.
func (r *Repository) CacheStatusCounts(ctx context.Context) ([]entities.ProviderStatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, status, COUNT(*)
		FROM lookup_cache
		GROUP BY provider, status
		ORDER BY provider, status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}
	defer rows.Close()

	var result []entities.ProviderStatusCount
	for rows.Next() {
		var c entities.ProviderStatusCount
		if err := rows.Scan(&c.Provider, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// BackoffSummary counts retryable entries still in backoff at now and
// returns the earliest backoff deadline among them.
func (r *Repository) BackoffSummary(ctx context.Context, now time.Time) (int, *time.Time, error) {
	var count int
	var next sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(backoff_until)
		FROM lookup_cache
		WHERE status IN ('error', 'ratelimited') AND backoff_until > ?
	`, formatTime(now)).Scan(&count, &next)
	if err != nil {
		return 0, nil, fmt.Errorf("summarizing backoff: %w", err)
	}
	nextAt, err := parseNullTime(next)
	if err != nil {
		return 0, nil, err
	}
	return count, nextAt, nil
}

// IncrementProviderUsage records one live call for provider on day and
// returns the new total.
func (r *Repository) IncrementProviderUsage(ctx context.Context, provider, day string) (int, error) {
	var calls int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO provider_usage (provider, day, calls) VALUES (?, ?, 1)
		ON CONFLICT (provider, day) DO UPDATE SET calls = calls + 1
		RETURNING calls
	`, provider, day).Scan(&calls)
	if err != nil {
		return 0, fmt.Errorf("incrementing provider usage: %w", err)
	}
	return calls, nil
}

// ProviderUsage returns the live call count for provider on day.
func (r *Repository) ProviderUsage(ctx context.Context, provider, day string) (int, error) {
	var calls int
	err := r.db.QueryRowContext(ctx, `
		SELECT calls FROM provider_usage WHERE provider = ? AND day = ?
	`, provider, day).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading provider usage: %w", err)
	}
	return calls, nil
}

// ListProviderUsage returns usage for all providers on day.
func (r *Repository) ListProviderUsage(ctx context.Context, day string) ([]entities.ProviderUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, day, calls FROM provider_usage
		WHERE day = ?
		ORDER BY provider
	`, day)
	if err != nil {
		return nil, fmt.Errorf("listing provider usage: %w", err)
	}
	defer rows.Close()

	var result []entities.ProviderUsage
	for rows.Next() {
		var u entities.ProviderUsage
		if err := rows.Scan(&u.Provider, &u.Day, &u.Calls); err != nil {
			return nil, fmt.Errorf("scanning provider usage: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// AddPending queues queries for later population and returns how many
// were new. Existing keys are kept as they are.
func (r *Repository) AddPending(ctx context.Context, pending []entities.PendingLookup) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_lookups (normalized_query, query, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (normalized_query) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing pending insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, p := range pending {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = timeNow()
		}
		kind := p.Kind
		if kind == "" {
			kind = entities.MentionOther
		}
		res, err := stmt.ExecContext(ctx, p.NormalizedQuery, p.Query, string(kind), formatTime(createdAt))
		if err != nil {
			return 0, fmt.Errorf("adding pending lookup: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("adding pending lookup: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing pending lookups: %w", err)
	}
	return added, nil
}

// ListPending lists queries not yet resolved, oldest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]entities.PendingLookup, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT normalized_query, query, kind, created_at, resolved_at
		FROM pending_lookups
		WHERE resolved_at IS NULL
		ORDER BY created_at, normalized_query
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending lookups: %w", err)
	}
	defer rows.Close()

	var result []entities.PendingLookup
	for rows.Next() {
		var p entities.PendingLookup
		var createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(&p.NormalizedQuery, &p.Query, &p.Kind, &createdAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scanning pending lookup: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// MarkPendingResolved marks a pending query as processed.
func (r *Repository) MarkPendingResolved(ctx context.Context, normalizedQuery string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_lookups SET resolved_at = ? WHERE normalized_query = ?
	`, formatTime(at), normalizedQuery)
	if err != nil {
		return fmt.Errorf("marking pending lookup resolved: %w", err)
	}
	return nil
}

// CountPending returns open and total pending counts.
func (r *Repository) CountPending(ctx context.Context) (int, int, error) {
	var open, total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN resolved_at IS NULL THEN 1 ELSE 0 END), 0), COUNT(*)
		FROM pending_lookups
	`).Scan(&open, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("counting pending lookups: %w", err)
	}
	return open, total, nil
}
