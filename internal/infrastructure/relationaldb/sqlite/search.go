package sqlite

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// AliasSearcher is an approximate alias text search backed by the FTS5
// index, or by LIKE when FTS5 is unavailable.
type AliasSearcher struct {
	repo *Repository
}

// NewAliasSearcher creates a searcher over the repository's aliases.
func NewAliasSearcher(repo *Repository) *AliasSearcher {
	return &AliasSearcher{repo: repo}
}

// Name identifies the searcher in candidate reasons.
func (s *AliasSearcher) Name() string {
	return "fts"
}

// SearchAliases returns matches ordered by descending score in [0, 1].
func (s *AliasSearcher) SearchAliases(ctx context.Context, query string, limit int) ([]entities.AliasMatch, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if s.repo.fts {
		return s.searchFTS(ctx, tokens, limit)
	}
	return s.searchLike(ctx, tokens, limit)
}

// ftsQuery turns tokens into an FTS5 expression of quoted prefix terms.
func ftsQuery(tokens []string) string {
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " OR ")
}

func (s *AliasSearcher) searchFTS(ctx context.Context, tokens []string, limit int) ([]entities.AliasMatch, error) {
	rows, err := s.repo.db.QueryContext(ctx, `
		SELECT alias_id, entity_id, alias_text, normalized, bm25(aliases_fts) AS rank
		FROM aliases_fts
		WHERE aliases_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(tokens), limit)
	if err != nil {
		return nil, fmt.Errorf("searching alias index: %w", err)
	}
	defer rows.Close()

	var matches []entities.AliasMatch
	var best float64
	for rows.Next() {
		var m entities.AliasMatch
		var rank float64
		if err := rows.Scan(&m.AliasID, &m.EntityID, &m.Text, &m.Normalized, &rank); err != nil {
			return nil, fmt.Errorf("scanning alias match: %w", err)
		}
		// bm25 is negative with lower meaning better; scale against the top hit.
		if len(matches) == 0 {
			best = rank
		}
		m.Score = 1
		if best < 0 {
			m.Score = rank / best
		}
		m.Source = "fts"
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *AliasSearcher) searchLike(ctx context.Context, tokens []string, limit int) ([]entities.AliasMatch, error) {
	var clauses sq.Or
	for _, t := range tokens {
		clauses = append(clauses, sq.Like{"normalized": "%" + escapeLike(t) + "%"})
	}
	q := psql.Select("id", "entity_id", "alias_text", "normalized").
		From("aliases").
		Where(clauses).
		OrderBy("length(normalized)", "id").
		Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building alias search: %w", err)
	}
	rows, err := s.repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching aliases: %w", err)
	}
	defer rows.Close()

	var matches []entities.AliasMatch
	for rows.Next() {
		var m entities.AliasMatch
		if err := rows.Scan(&m.AliasID, &m.EntityID, &m.Text, &m.Normalized); err != nil {
			return nil, fmt.Errorf("scanning alias match: %w", err)
		}
		m.Source = "like"
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
