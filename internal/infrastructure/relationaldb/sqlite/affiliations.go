package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ersonp/newsground/internal/domain/entities"
)

const affiliationColumns = `id, person_id, COALESCE(org_id, ''), COALESCE(symbol_alias_id, ''), role_title,
	valid_from, valid_to, source, confidence, created_at`

func scanAffiliations(rows *sql.Rows) ([]entities.Affiliation, error) {
	defer rows.Close()

	var result []entities.Affiliation
	for rows.Next() {
		var a entities.Affiliation
		var validFrom, validTo sql.NullString
		var createdAt string
		if err := rows.Scan(
			&a.ID, &a.PersonID, &a.OrgID, &a.SymbolAliasID, &a.RoleTitle,
			&validFrom, &validTo, &a.Source, &a.Confidence, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning affiliation: %w", err)
		}
		var err error
		if a.ValidFrom, err = parseNullTime(validFrom); err != nil {
			return nil, err
		}
		if a.ValidTo, err = parseNullTime(validTo); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// InsertAffiliation stores an affiliation. Returns ErrDuplicateAffiliation
// when (person, org, role) already exists.
func (r *Repository) InsertAffiliation(ctx context.Context, aff *entities.Affiliation) error {
	return insertAffiliation(ctx, r.db, aff)
}

func insertAffiliation(ctx context.Context, db execer, aff *entities.Affiliation) error {
	if aff.ID == "" {
		aff.ID = generateUUID()
	}
	if aff.CreatedAt.IsZero() {
		aff.CreatedAt = timeNow().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO affiliations (id, person_id, org_id, symbol_alias_id, role_title, role_key,
			valid_from, valid_to, source, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, aff.ID, aff.PersonID, nullString(aff.OrgID), nullString(aff.SymbolAliasID), aff.RoleTitle,
		strings.ToLower(strings.TrimSpace(aff.RoleTitle)),
		nullTime(aff.ValidFrom), nullTime(aff.ValidTo), aff.Source, aff.Confidence, formatTime(aff.CreatedAt))
	if isUniqueViolation(err) {
		return entities.ErrDuplicateAffiliation
	}
	if err != nil {
		return fmt.Errorf("inserting affiliation: %w", err)
	}
	return nil
}

// FindAffiliationsByPerson lists affiliations of a person, newest first.
func (r *Repository) FindAffiliationsByPerson(ctx context.Context, personID string) ([]entities.Affiliation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+affiliationColumns+` FROM affiliations
		WHERE person_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("finding affiliations by person: %w", err)
	}
	return scanAffiliations(rows)
}

// FindAffiliationsByOrg lists affiliations at an organization, newest first.
func (r *Repository) FindAffiliationsByOrg(ctx context.Context, orgID string) ([]entities.Affiliation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+affiliationColumns+` FROM affiliations
		WHERE org_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("finding affiliations by org: %w", err)
	}
	return scanAffiliations(rows)
}

// SupersedeAffiliations closes the listed affiliations and stores the next
// one in a single transaction.
func (r *Repository) SupersedeAffiliations(ctx context.Context, sup entities.Supersession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range sup.Close {
		res, err := tx.ExecContext(ctx, `UPDATE affiliations SET valid_to = ? WHERE id = ?`, formatTime(sup.At), id)
		if err := affectedOne(res, err, id); err != nil {
			return fmt.Errorf("closing affiliation: %w", err)
		}
	}

	switch {
	case sup.Next == nil:
	case sup.Rewrite:
		next := sup.Next
		res, err := tx.ExecContext(ctx, `
			UPDATE affiliations SET valid_from = ?, valid_to = ?, source = ?, confidence = ?
			WHERE id = ?
		`, nullTime(next.ValidFrom), nullTime(next.ValidTo), next.Source, next.Confidence, next.ID)
		if err := affectedOne(res, err, next.ID); err != nil {
			return fmt.Errorf("updating affiliation: %w", err)
		}
	default:
		if err := insertAffiliation(ctx, tx, sup.Next); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing supersession: %w", err)
	}
	return nil
}

func affectedOne(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("affiliation %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// FindAffiliatedSymbols lists symbols reachable from a person, either through
// an affiliation's own symbol alias or through the organization's symbols.
func (r *Repository) FindAffiliatedSymbols(ctx context.Context, personID string) ([]entities.AffiliatedSymbol, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT f.id, f.person_id, COALESCE(f.org_id, ''), a.normalized,
			f.valid_from, f.valid_to, f.created_at
		FROM affiliations f
		JOIN aliases a ON a.id = f.symbol_alias_id
			OR (a.entity_id = f.org_id AND a.alias_type = 'symbol')
		WHERE f.person_id = ?
		ORDER BY f.created_at, f.id, a.normalized
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("finding affiliated symbols: %w", err)
	}
	defer rows.Close()

	var result []entities.AffiliatedSymbol
	for rows.Next() {
		var s entities.AffiliatedSymbol
		var validFrom, validTo sql.NullString
		var createdAt string
		if err := rows.Scan(&s.AffiliationID, &s.PersonID, &s.OrgID, &s.Symbol, &validFrom, &validTo, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning affiliated symbol: %w", err)
		}
		if s.ValidFrom, err = parseNullTime(validFrom); err != nil {
			return nil, err
		}
		if s.ValidTo, err = parseNullTime(validTo); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
