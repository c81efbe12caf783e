package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ersonp/newsground/internal/domain/entities"
)

const aliasColumns = `a.id, a.entity_id, a.alias_text, a.alias_type, a.normalized, a.lang, a.script,
	a.source, a.confidence, a.primary_exchange, a.is_primary, a.created_at`

func scanAlias(row rowScanner, extra ...any) (entities.Alias, error) {
	var a entities.Alias
	var createdAt string
	dest := []any{
		&a.ID, &a.EntityID, &a.Text, &a.Type, &a.Normalized, &a.Lang, &a.Script,
		&a.Source, &a.Confidence, &a.PrimaryExchange, &a.IsPrimary, &createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return a, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return a, err
	}
	a.CreatedAt = t
	return a, nil
}

// InsertAlias stores an alias unless one with the same (entity, type,
// normalized) key exists, in which case the existing row is returned.
func (r *Repository) InsertAlias(ctx context.Context, alias *entities.Alias) (*entities.Alias, bool, error) {
	stored := *alias
	if stored.ID == "" {
		stored.ID = generateUUID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = timeNow().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO aliases (id, entity_id, alias_text, alias_type, normalized, lang, script,
			source, confidence, primary_exchange, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, alias_type, normalized) DO NOTHING
	`, stored.ID, stored.EntityID, stored.Text, string(stored.Type), stored.Normalized, stored.Lang, stored.Script,
		stored.Source, stored.Confidence, stored.PrimaryExchange, stored.IsPrimary, formatTime(stored.CreatedAt))
	if err != nil {
		return nil, false, fmt.Errorf("inserting alias: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking alias insert: %w", err)
	}
	if n == 1 {
		return &stored, true, nil
	}

	existing, err := scanAlias(r.db.QueryRowContext(ctx, `
		SELECT `+aliasColumns+` FROM aliases a
		WHERE a.entity_id = ? AND a.alias_type = ? AND a.normalized = ?
	`, stored.EntityID, string(stored.Type), stored.Normalized))
	if err != nil {
		return nil, false, fmt.Errorf("loading existing alias: %w", err)
	}
	return &existing, false, nil
}

// FindAliases returns exact normalized alias matches joined with their entities.
func (r *Repository) FindAliases(ctx context.Context, f entities.AliasFilter) ([]entities.AliasHit, error) {
	q := psql.Select(aliasColumns, prefixColumns("e", entityColumns)).
		From("aliases a").
		Join("entities e ON e.id = a.entity_id").
		OrderBy("a.created_at", "a.rowid")

	if f.Normalized != "" {
		q = q.Where(sq.Eq{"a.normalized": f.Normalized})
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q = q.Where(sq.Eq{"a.alias_type": types})
	}
	if f.EntityID != "" {
		q = q.Where(sq.Eq{"a.entity_id": f.EntityID})
	}
	if f.EntityType != "" {
		q = q.Where(sq.Eq{"e.entity_type": string(f.EntityType)})
	}
	if f.Exchange != "" {
		q = q.Where(sq.Eq{"a.primary_exchange": f.Exchange})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building alias query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding aliases: %w", err)
	}
	defer rows.Close()

	var hits []entities.AliasHit
	for rows.Next() {
		hit, err := scanAliasHit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alias hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// scanAliasHit reads an alias row followed by its entity columns.
func scanAliasHit(rows *sql.Rows) (entities.AliasHit, error) {
	var hit entities.AliasHit
	var es entityScan
	a, err := scanAlias(rows, es.dest()...)
	if err != nil {
		return hit, err
	}
	e, err := es.entity()
	if err != nil {
		return hit, err
	}
	hit.Alias = a
	hit.Entity = e
	return hit, nil
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(table, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ListAliases lists all aliases of an entity, oldest first.
func (r *Repository) ListAliases(ctx context.Context, entityID string) ([]entities.Alias, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+aliasColumns+` FROM aliases a
		WHERE a.entity_id = ?
		ORDER BY a.created_at, a.rowid
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}
	defer rows.Close()

	var result []entities.Alias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// DeleteAlias deletes an alias by ID.
func (r *Repository) DeleteAlias(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM aliases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting alias: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
