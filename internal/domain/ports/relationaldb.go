package ports

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// EntityStore defines persistence for canonical entities, their aliases and
// affiliations. Find methods return nil, nil when nothing matches.
type EntityStore interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Entity operations

	// UpsertEntity inserts the entity or merges non-empty fields into the
	// existing row with the same identity key. Returns the stored entity.
	UpsertEntity(ctx context.Context, entity *entities.Entity, identityKey string) (*entities.Entity, bool, error)

	// FindEntityByID finds an entity by its ID.
	FindEntityByID(ctx context.Context, id string) (*entities.Entity, error)

	// FindEntityByIdentity finds an entity by its identity key.
	FindEntityByIdentity(ctx context.Context, identityKey string) (*entities.Entity, error)

	// ListEntities lists entities, optionally of one type, with pagination.
	ListEntities(ctx context.Context, entityType entities.EntityType, limit, offset int) ([]*entities.Entity, error)

	// SearchEntities searches entity names by substring.
	SearchEntities(ctx context.Context, query string, limit int) ([]*entities.Entity, error)

	// CountEntities returns the number of entities.
	CountEntities(ctx context.Context) (int, error)

	// DeleteEntity deletes an entity together with its aliases and affiliations.
	DeleteEntity(ctx context.Context, id string) error

	// FindPersons finds person entities by derived name keys.
	FindPersons(ctx context.Context, q entities.PersonQuery) ([]*entities.Entity, error)

	// Alias operations

	// InsertAlias stores an alias unless one with the same
	// (entity, type, normalized) key exists. Returns the stored alias and
	// whether a new row was written.
	InsertAlias(ctx context.Context, alias *entities.Alias) (*entities.Alias, bool, error)

	// FindAliases returns exact normalized alias matches with their entities.
	FindAliases(ctx context.Context, filter entities.AliasFilter) ([]entities.AliasHit, error)

	// ListAliases lists all aliases of an entity.
	ListAliases(ctx context.Context, entityID string) ([]entities.Alias, error)

	// DeleteAlias deletes an alias by ID.
	DeleteAlias(ctx context.Context, id string) error

	// Affiliation operations

	// InsertAffiliation stores an affiliation. Returns ErrDuplicateAffiliation
	// when (person, org, role) already exists.
	InsertAffiliation(ctx context.Context, aff *entities.Affiliation) error

	// FindAffiliationsByPerson lists affiliations of a person, newest first.
	FindAffiliationsByPerson(ctx context.Context, personID string) ([]entities.Affiliation, error)

	// FindAffiliationsByOrg lists affiliations at an organization, newest first.
	FindAffiliationsByOrg(ctx context.Context, orgID string) ([]entities.Affiliation, error)

	// SupersedeAffiliations applies a supersession in one transaction. It
	// returns ErrNotFound for an unknown affiliation and
	// ErrDuplicateAffiliation when the next role already exists; nothing is
	// changed in either case.
	SupersedeAffiliations(ctx context.Context, s entities.Supersession) error

	// FindAffiliatedSymbols lists symbols reachable from a person through
	// affiliations, either directly or via the organization's symbol aliases.
	FindAffiliatedSymbols(ctx context.Context, personID string) ([]entities.AffiliatedSymbol, error)

	// Audit operations

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, entityID string, details map[string]any) error

	// FindAuditLog finds audit log entries for an entity.
	FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}
