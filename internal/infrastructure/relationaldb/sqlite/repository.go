// Package sqlite provides a SQLite implementation of the entity store and
// the lookup cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var (
	_ ports.EntityStore       = (*Repository)(nil)
	_ ports.LookupCacheStore  = (*Repository)(nil)
	_ ports.CandidateSearcher = (*AliasSearcher)(nil)
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.EntityStore and ports.LookupCacheStore using SQLite.
type Repository struct {
	db   *sql.DB
	path string
	fts  bool
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if cfg.Path == ":memory:" {
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)

		// Enable foreign keys for referential integrity
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
		return &Repository{db: db, path: cfg.Path}, nil
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "busy_timeout(5000)")
	// Transactions take the write lock at BEGIN.
	pragmas.Add("_txlock", "immediate")
	db, err := sql.Open("sqlite", "file:"+cfg.Path+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	return &Repository{db: db, path: cfg.Path}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

const schema = `
	-- Entities (one row per real-world referent)
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL CHECK (entity_type IN ('org', 'person', 'product', 'fund', 'regulator', 'other')),
		identity_key TEXT NOT NULL UNIQUE,
		canonical_full TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		given TEXT,
		middle TEXT,
		family TEXT,
		suffix TEXT,
		given_norm TEXT,
		family_norm TEXT,
		given_initial TEXT,
		given_prefix3 TEXT,
		middle_initials TEXT,
		full_norm_no_honor TEXT,
		profile TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK ((entity_type = 'person') = (family_norm IS NOT NULL))
	);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
	CREATE INDEX IF NOT EXISTS idx_entities_person_initial ON entities(family_norm, given_initial);
	CREATE INDEX IF NOT EXISTS idx_entities_person_prefix ON entities(family_norm, given_prefix3);

	-- Aliases (surface forms denoting an entity)
	CREATE TABLE IF NOT EXISTS aliases (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		alias_text TEXT NOT NULL,
		alias_type TEXT NOT NULL,
		normalized TEXT NOT NULL,
		lang TEXT NOT NULL DEFAULT '',
		script TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0 CHECK (confidence >= 0 AND confidence <= 1),
		primary_exchange TEXT NOT NULL DEFAULT '',
		is_primary INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(entity_id, alias_type, normalized)
	);
	CREATE INDEX IF NOT EXISTS idx_aliases_normalized ON aliases(normalized);
	CREATE INDEX IF NOT EXISTS idx_aliases_entity ON aliases(entity_id);

	-- Affiliations (time-bounded person roles)
	CREATE TABLE IF NOT EXISTS affiliations (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		org_id TEXT REFERENCES entities(id) ON DELETE CASCADE,
		symbol_alias_id TEXT REFERENCES aliases(id) ON DELETE SET NULL,
		role_title TEXT NOT NULL,
		role_key TEXT NOT NULL,
		valid_from TEXT,
		valid_to TEXT,
		source TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0 CHECK (confidence >= 0 AND confidence <= 1),
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_affiliations_unique ON affiliations(person_id, COALESCE(org_id, ''), role_key);
	CREATE INDEX IF NOT EXISTS idx_affiliations_org ON affiliations(org_id);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);

	-- Lookup cache (one row per provider and normalized query)
	CREATE TABLE IF NOT EXISTS lookup_cache (
		provider TEXT NOT NULL,
		normalized_query TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('ok', 'empty', 'error', 'ratelimited')),
		results TEXT,
		http_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		backoff_until TEXT,
		PRIMARY KEY (provider, normalized_query)
	);
	CREATE INDEX IF NOT EXISTS idx_lookup_cache_status ON lookup_cache(status);
	CREATE INDEX IF NOT EXISTS idx_lookup_cache_backoff ON lookup_cache(backoff_until);

	-- Live provider calls per UTC day
	CREATE TABLE IF NOT EXISTS provider_usage (
		provider TEXT NOT NULL,
		day TEXT NOT NULL,
		calls INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (provider, day)
	);

	-- Queries queued for bulk population
	CREATE TABLE IF NOT EXISTS pending_lookups (
		normalized_query TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'other',
		created_at TEXT NOT NULL,
		resolved_at TEXT
	);
`

// ftsSchema mirrors alias text into an FTS5 index for approximate search.
const ftsSchema = `
	CREATE VIRTUAL TABLE IF NOT EXISTS aliases_fts USING fts5(
		alias_id UNINDEXED,
		entity_id UNINDEXED,
		alias_text,
		normalized,
		tokenize = 'unicode61 remove_diacritics 2'
	);
	CREATE TRIGGER IF NOT EXISTS aliases_fts_insert AFTER INSERT ON aliases BEGIN
		INSERT INTO aliases_fts (alias_id, entity_id, alias_text, normalized)
		VALUES (new.id, new.entity_id, new.alias_text, new.normalized);
	END;
	CREATE TRIGGER IF NOT EXISTS aliases_fts_delete AFTER DELETE ON aliases BEGIN
		DELETE FROM aliases_fts WHERE alias_id = old.id;
	END;
`

// EnsureSchema creates the database schema if it doesn't exist. The FTS5
// index is optional; without it alias search falls back to LIKE.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	_, err := r.db.ExecContext(ctx, ftsSchema)
	r.fts = err == nil
	return nil
}

// HasFullText reports whether the FTS5 alias index is available.
func (r *Repository) HasFullText() bool {
	return r.fts
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
