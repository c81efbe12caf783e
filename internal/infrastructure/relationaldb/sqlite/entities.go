package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ersonp/newsground/internal/domain/entities"
)

const entityColumns = `id, entity_type, canonical_full, display_name,
	given, middle, family, suffix,
	given_norm, family_norm, given_initial, given_prefix3, middle_initials, full_norm_no_honor,
	profile, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// entityScan holds the scan targets for one entity row.
type entityScan struct {
	e                                                                           entities.Entity
	given, middle, family, suffix                                               sql.NullString
	givenNorm, familyNorm, givenInitial, givenPrefix3, middleInitials, fullNorm sql.NullString
	profile                                                                     sql.NullString
	createdAt, updatedAt                                                        string
}

func (s *entityScan) dest() []any {
	return []any{
		&s.e.ID, &s.e.Type, &s.e.CanonicalFull, &s.e.DisplayName,
		&s.given, &s.middle, &s.family, &s.suffix,
		&s.givenNorm, &s.familyNorm, &s.givenInitial, &s.givenPrefix3, &s.middleInitials, &s.fullNorm,
		&s.profile, &s.createdAt, &s.updatedAt,
	}
}

func (s *entityScan) entity() (*entities.Entity, error) {
	e := s.e
	if s.familyNorm.Valid {
		e.Person = &entities.PersonName{
			Given:  s.given.String,
			Middle: s.middle.String,
			Family: s.family.String,
			Suffix: s.suffix.String,
		}
		e.Keys = &entities.PersonKeys{
			GivenNorm:       s.givenNorm.String,
			FamilyNorm:      s.familyNorm.String,
			GivenInitial:    s.givenInitial.String,
			GivenPrefix3:    s.givenPrefix3.String,
			MiddleInitials:  s.middleInitials.String,
			FullNormNoHonor: s.fullNorm.String,
		}
	}
	if s.profile.Valid {
		var p entities.OrgProfile
		if err := json.Unmarshal([]byte(s.profile.String), &p); err != nil {
			return nil, fmt.Errorf("unmarshaling profile: %w", err)
		}
		e.Profile = &p
	}

	var err error
	if e.CreatedAt, err = parseTime(s.createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(s.updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntity(row rowScanner) (*entities.Entity, error) {
	var s entityScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.entity()
}

func scanEntities(rows *sql.Rows) ([]*entities.Entity, error) {
	defer rows.Close()

	var result []*entities.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func profileJSON(p *entities.OrgProfile) (sql.NullString, error) {
	if p == nil || p.IsZero() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling profile: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// UpsertEntity inserts the entity or merges non-empty fields into the row
// with the same identity key. Concurrent callers with the same key see
// exactly one insert; the others merge into the winner's row.
func (r *Repository) UpsertEntity(ctx context.Context, e *entities.Entity, identityKey string) (*entities.Entity, bool, error) {
	stored := *e
	if stored.ID == "" {
		stored.ID = generateUUID()
	}
	inserted, err := r.insertEntity(ctx, r.db, &stored, identityKey)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return &stored, true, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanEntity(tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE identity_key = ?`, identityKey))
	if err != nil {
		return nil, false, fmt.Errorf("finding entity by identity: %w", err)
	}

	merged := mergeEntity(existing, e)
	if err := r.updateEntity(ctx, tx, merged); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing entity: %w", err)
	}
	return merged, false, nil
}

// mergeEntity applies the non-empty fields of update to existing. Identity
// fields are never changed by a merge.
func mergeEntity(existing, update *entities.Entity) *entities.Entity {
	merged := *existing
	if update.DisplayName != "" {
		merged.DisplayName = update.DisplayName
	}
	if update.Profile != nil && !update.Profile.IsZero() {
		merged.Profile = update.Profile
	}
	if merged.Person != nil && update.Person != nil {
		person := *merged.Person
		if update.Person.Middle != "" && person.Middle == "" {
			person.Middle = update.Person.Middle
			merged.Keys = update.Keys
		}
		if update.Person.Suffix != "" {
			person.Suffix = update.Person.Suffix
		}
		merged.Person = &person
	}
	merged.UpdatedAt = update.UpdatedAt
	return &merged
}

func personColumns(e *entities.Entity) []any {
	if e.Person == nil || e.Keys == nil {
		return make([]any, 10)
	}
	return []any{
		e.Person.Given, e.Person.Middle, e.Person.Family, e.Person.Suffix,
		e.Keys.GivenNorm, e.Keys.FamilyNorm, e.Keys.GivenInitial, e.Keys.GivenPrefix3,
		e.Keys.MiddleInitials, e.Keys.FullNormNoHonor,
	}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertEntity inserts e unless its identity key exists and reports
// whether a row was written.
func (r *Repository) insertEntity(ctx context.Context, db execer, e *entities.Entity, identityKey string) (bool, error) {
	profile, err := profileJSON(e.Profile)
	if err != nil {
		return false, err
	}
	args := []any{e.ID, string(e.Type), identityKey, e.CanonicalFull, e.DisplayName}
	args = append(args, personColumns(e)...)
	args = append(args, profile, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))

	res, err := db.ExecContext(ctx, `
		INSERT INTO entities (id, entity_type, identity_key, canonical_full, display_name,
			given, middle, family, suffix,
			given_norm, family_norm, given_initial, given_prefix3, middle_initials, full_norm_no_honor,
			profile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity_key) DO NOTHING
	`, args...)
	if err != nil {
		return false, fmt.Errorf("inserting entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking entity insert: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) updateEntity(ctx context.Context, tx *sql.Tx, e *entities.Entity) error {
	profile, err := profileJSON(e.Profile)
	if err != nil {
		return err
	}
	args := []any{e.DisplayName}
	args = append(args, personColumns(e)...)
	args = append(args, profile, formatTime(e.UpdatedAt), e.ID)

	_, err = tx.ExecContext(ctx, `
		UPDATE entities SET display_name = ?,
			given = ?, middle = ?, family = ?, suffix = ?,
			given_norm = ?, family_norm = ?, given_initial = ?, given_prefix3 = ?,
			middle_initials = ?, full_norm_no_honor = ?,
			profile = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	return nil
}

// FindEntityByID finds an entity by its ID.
func (r *Repository) FindEntityByID(ctx context.Context, id string) (*entities.Entity, error) {
	return r.findEntity(ctx, "id", id)
}

// FindEntityByIdentity finds an entity by its identity key.
func (r *Repository) FindEntityByIdentity(ctx context.Context, identityKey string) (*entities.Entity, error) {
	return r.findEntity(ctx, "identity_key", identityKey)
}

func (r *Repository) findEntity(ctx context.Context, column, value string) (*entities.Entity, error) {
	e, err := scanEntity(r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE `+column+` = ?`, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return e, nil
}

// ListEntities lists entities, optionally of one type, with pagination.
func (r *Repository) ListEntities(ctx context.Context, entityType entities.EntityType, limit, offset int) ([]*entities.Entity, error) {
	q := psql.Select(entityColumns).From("entities").OrderBy("canonical_full", "id")
	if entityType != "" {
		q = q.Where(sq.Eq{"entity_type": string(entityType)})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return scanEntities(rows)
}

// SearchEntities searches canonical and display names by substring.
func (r *Repository) SearchEntities(ctx context.Context, query string, limit int) ([]*entities.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE canonical_full LIKE ? ESCAPE '\' OR display_name LIKE ? ESCAPE '\'
		ORDER BY canonical_full, id
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	return scanEntities(rows)
}

// CountEntities returns the number of entities.
func (r *Repository) CountEntities(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// DeleteEntity deletes an entity. Aliases and affiliations cascade.
func (r *Repository) DeleteEntity(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	return nil
}

// FindPersons finds person entities by family name and given initial or prefix.
func (r *Repository) FindPersons(ctx context.Context, pq entities.PersonQuery) ([]*entities.Entity, error) {
	q := psql.Select(entityColumns).From("entities").
		Where(sq.Eq{"entity_type": string(entities.EntityPerson), "family_norm": pq.FamilyNorm}).
		OrderBy("given_norm", "id")

	var given sq.Or
	if pq.GivenInitial != "" {
		given = append(given, sq.Eq{"given_initial": pq.GivenInitial})
	}
	if pq.GivenPrefix3 != "" {
		given = append(given, sq.Eq{"given_prefix3": pq.GivenPrefix3})
	}
	if len(given) > 0 {
		q = q.Where(given)
	}
	if pq.Limit > 0 {
		q = q.Limit(uint64(pq.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building person query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding persons: %w", err)
	}
	return scanEntities(rows)
}
