// Package services contains domain business logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/normalize"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// AliasIndexer keeps a secondary alias index in sync with the entity store.
type AliasIndexer interface {
	IndexAliases(ctx context.Context, aliases []entities.Alias) error
	RemoveAlias(ctx context.Context, aliasID string) error
}

// AliasInput describes an alias to register.
type AliasInput struct {
	// ID, when set, names the logical alias the caller expects to exist.
	ID              string
	EntityID        string
	Text            string
	Type            entities.AliasType
	Source          string
	Confidence      float64
	Lang            string
	Script          string
	PrimaryExchange string
	IsPrimary       bool
}

// AffiliationInput describes an affiliation to register.
type AffiliationInput struct {
	PersonID      string
	OrgID         string
	SymbolAliasID string
	RoleTitle     string
	Validity      entities.Validity
	Source        string
	Confidence    float64
}

// EntityDetails bundles an entity with its aliases and affiliations.
type EntityDetails struct {
	Entity       *entities.Entity       `json:"entity"`
	Aliases      []entities.Alias       `json:"aliases"`
	Affiliations []entities.Affiliation `json:"affiliations"`
}

// EntityService manages entities, aliases and affiliations and enforces
// their invariants before anything reaches the store.
type EntityService struct {
	store   ports.EntityStore
	indexer AliasIndexer
	logger  *slog.Logger
	now     func() time.Time
}

// NewEntityService creates a new EntityService.
func NewEntityService(store ports.EntityStore, logger *slog.Logger) *EntityService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EntityService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithAliasIndexer mirrors alias writes into a secondary index.
func (s *EntityService) WithAliasIndexer(indexer AliasIndexer) *EntityService {
	s.indexer = indexer
	return s
}

// IdentityKey returns the key that identifies the real-world referent of e.
// Persons are keyed by family and given name, plus middle initials when
// known.
func IdentityKey(e *entities.Entity) string {
	if e.Type == entities.EntityPerson && e.Person != nil {
		return personIdentityKey(normalize.KeysFor(e.Person.Given, e.Person.Middle, e.Person.Family))
	}
	return string(e.Type) + "|" + normalize.Normalize(e.CanonicalFull)
}

func personIdentityKey(k normalize.Keys) string {
	key := strings.Join([]string{string(entities.EntityPerson), k.FamilyNorm, k.GivenNorm}, "|")
	if k.MiddleInitials != "" {
		key += "|" + k.MiddleInitials
	}
	return key
}

// personIdentity picks the identity key a person upsert merges into.
//
// With middle initials, the person merges into the row for the full key,
// else into the row for the bare name while that row has no other middle
// name, else a new row is created. Without middle initials, the person
// merges into the bare-name row, else into the only person of that name,
// else a new bare-name row is created.
func (s *EntityService) personIdentity(ctx context.Context, k normalize.Keys) (string, error) {
	full := personIdentityKey(k)
	bare := personIdentityKey(normalize.Keys{FamilyNorm: k.FamilyNorm, GivenNorm: k.GivenNorm})

	if k.MiddleInitials != "" {
		existing, err := s.store.FindEntityByIdentity(ctx, full)
		if err != nil {
			return "", fmt.Errorf("finding person by identity: %w", err)
		}
		if existing != nil {
			return full, nil
		}
	}

	existing, err := s.store.FindEntityByIdentity(ctx, bare)
	if err != nil {
		return "", fmt.Errorf("finding person by identity: %w", err)
	}
	if existing != nil {
		if k.MiddleInitials == "" || existing.Keys == nil ||
			existing.Keys.MiddleInitials == "" || existing.Keys.MiddleInitials == k.MiddleInitials {
			return bare, nil
		}
		return full, nil
	}
	if k.MiddleInitials != "" {
		return full, nil
	}

	persons, err := s.store.FindPersons(ctx, entities.PersonQuery{FamilyNorm: k.FamilyNorm, GivenInitial: k.GivenInitial})
	if err != nil {
		return "", fmt.Errorf("finding persons: %w", err)
	}
	var same []*entities.Entity
	for _, p := range persons {
		if p.Keys != nil && p.Keys.GivenNorm == k.GivenNorm {
			same = append(same, p)
		}
	}
	if len(same) == 1 {
		return personIdentityKey(normalize.Keys{
			FamilyNorm:     k.FamilyNorm,
			GivenNorm:      k.GivenNorm,
			MiddleInitials: same[0].Keys.MiddleInitials,
		}), nil
	}
	return bare, nil
}

// UpsertEntity validates and stores an entity. An entity with the same
// identity key is merged rather than duplicated.
func (s *EntityService) UpsertEntity(ctx context.Context, e *entities.Entity) (*entities.Entity, error) {
	e.CanonicalFull = strings.TrimSpace(e.CanonicalFull)
	e.DisplayName = strings.TrimSpace(e.DisplayName)
	if e.Person != nil {
		e.Person.Given = strings.TrimSpace(e.Person.Given)
		e.Person.Middle = strings.TrimSpace(e.Person.Middle)
		e.Person.Family = strings.TrimSpace(e.Person.Family)
		e.Person.Suffix = strings.TrimSpace(e.Person.Suffix)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if e.Type == entities.EntityPerson {
		keys := personKeys(normalize.KeysFor(e.Person.Given, e.Person.Middle, e.Person.Family))
		e.Keys = &keys
		if e.CanonicalFull == "" {
			e.CanonicalFull = e.Person.Full()
		}
	}

	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	identity := IdentityKey(e)
	if e.Type == entities.EntityPerson {
		var err error
		identity, err = s.personIdentity(ctx, normalize.KeysFor(e.Person.Given, e.Person.Middle, e.Person.Family))
		if err != nil {
			return nil, err
		}
	}

	stored, created, err := s.store.UpsertEntity(ctx, e, identity)
	if err != nil {
		return nil, fmt.Errorf("upserting entity: %w", err)
	}

	action := entities.ActionEntityUpdated
	if created {
		action = entities.ActionEntityCreated
	}
	if err := s.store.LogAction(ctx, action, stored.ID, map[string]any{
		"entity_type": string(stored.Type),
		"label":       stored.Label(),
	}); err != nil {
		return nil, fmt.Errorf("logging entity action: %w", err)
	}

	s.logger.Debug("entity stored", "id", stored.ID, "type", stored.Type, "created", created)
	return stored, nil
}

// CreatePerson parses a raw person name and stores the person entity.
func (s *EntityService) CreatePerson(ctx context.Context, rawName string) (*entities.Entity, error) {
	p := normalize.ParseName(rawName)
	return s.UpsertEntity(ctx, &entities.Entity{
		Type:        entities.EntityPerson,
		DisplayName: strings.TrimSpace(rawName),
		Person: &entities.PersonName{
			Given:  p.Given,
			Middle: strings.Join(p.Middle, " "),
			Family: p.Family,
			Suffix: p.Suffix,
		},
	})
}

// AliasKey returns the normalized matching key for alias text of a type.
func AliasKey(text string, t entities.AliasType) string {
	if t == entities.AliasSymbol || t == entities.AliasTickerOld {
		return normalize.Symbol(text)
	}
	return normalize.Normalize(text)
}

// AddAlias registers an alias. Registering the same (entity, type,
// normalized) key again returns the existing alias. It fails with
// ErrDuplicateAlias only when the caller names a different alias ID.
func (s *EntityService) AddAlias(ctx context.Context, in AliasInput) (*entities.Alias, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, &entities.ValidationError{Field: "alias_text", Message: "missing required field: alias_text"}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, &entities.ValidationError{Field: "confidence", Message: "confidence must be between 0 and 1"}
	}
	typ := entities.ParseAliasType(string(in.Type))
	normalized := AliasKey(text, typ)
	if normalized == "" {
		return nil, &entities.ValidationError{Field: "alias_text", Message: "alias text normalizes to empty"}
	}

	owner, err := s.store.FindEntityByID(ctx, in.EntityID)
	if err != nil {
		return nil, fmt.Errorf("finding alias owner: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("entity %s: %w", in.EntityID, entities.ErrNotFound)
	}

	isPrimary := in.IsPrimary
	if isPrimary && typ == entities.AliasSymbol {
		taken, err := s.hasPrimarySymbol(ctx, in.EntityID, in.PrimaryExchange, normalized)
		if err != nil {
			return nil, err
		}
		if taken {
			s.logger.Info("primary symbol already set, storing as secondary",
				"entity_id", in.EntityID, "symbol", text, "exchange", in.PrimaryExchange)
			isPrimary = false
		}
	}

	alias := &entities.Alias{
		ID:              in.ID,
		EntityID:        in.EntityID,
		Text:            text,
		Type:            typ,
		Normalized:      normalized,
		Lang:            in.Lang,
		Script:          in.Script,
		Source:          in.Source,
		Confidence:      in.Confidence,
		PrimaryExchange: strings.ToUpper(strings.TrimSpace(in.PrimaryExchange)),
		IsPrimary:       isPrimary,
		CreatedAt:       s.now(),
	}

	stored, inserted, err := s.store.InsertAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("inserting alias: %w", err)
	}
	if !inserted {
		if in.ID != "" && stored.ID != in.ID {
			return stored, fmt.Errorf("alias %q (%s) on entity %s: %w", text, typ, in.EntityID, entities.ErrDuplicateAlias)
		}
		return stored, nil
	}

	if err := s.store.LogAction(ctx, entities.ActionAliasAdded, in.EntityID, map[string]any{
		"alias_id":   stored.ID,
		"alias_text": stored.Text,
		"alias_type": string(stored.Type),
	}); err != nil {
		return nil, fmt.Errorf("logging alias action: %w", err)
	}

	if s.indexer != nil {
		if err := s.indexer.IndexAliases(ctx, []entities.Alias{*stored}); err != nil {
			s.logger.Warn("alias index update failed", "alias_id", stored.ID, "error", err)
		}
	}
	return stored, nil
}

func (s *EntityService) hasPrimarySymbol(ctx context.Context, entityID, exchange, normalized string) (bool, error) {
	hits, err := s.store.FindAliases(ctx, entities.AliasFilter{
		EntityID: entityID,
		Types:    []entities.AliasType{entities.AliasSymbol},
	})
	if err != nil {
		return false, fmt.Errorf("checking primary symbol: %w", err)
	}
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	for _, h := range hits {
		if h.Alias.IsPrimary && h.Alias.PrimaryExchange == exchange && h.Alias.Normalized != normalized {
			return true, nil
		}
	}
	return false, nil
}

// DeleteAlias removes an alias. A changed mapping is a new alias plus the
// deletion of the stale one.
func (s *EntityService) DeleteAlias(ctx context.Context, entityID, aliasID string) error {
	if err := s.store.DeleteAlias(ctx, aliasID); err != nil {
		return fmt.Errorf("deleting alias: %w", err)
	}
	if err := s.store.LogAction(ctx, entities.ActionAliasDeleted, entityID, map[string]any{"alias_id": aliasID}); err != nil {
		return fmt.Errorf("logging alias action: %w", err)
	}
	if s.indexer != nil {
		if err := s.indexer.RemoveAlias(ctx, aliasID); err != nil {
			s.logger.Warn("alias index delete failed", "alias_id", aliasID, "error", err)
		}
	}
	return nil
}

// AddAffiliation links a person to an organization.
func (s *EntityService) AddAffiliation(ctx context.Context, in AffiliationInput) (*entities.Affiliation, error) {
	aff, err := s.newAffiliation(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertAffiliation(ctx, aff); err != nil {
		if errors.Is(err, entities.ErrDuplicateAffiliation) {
			return nil, err
		}
		return nil, fmt.Errorf("inserting affiliation: %w", err)
	}

	if err := s.logAffiliationAdded(ctx, aff); err != nil {
		return nil, err
	}
	return aff, nil
}

// newAffiliation validates the input and builds the affiliation to store.
func (s *EntityService) newAffiliation(ctx context.Context, in AffiliationInput) (*entities.Affiliation, error) {
	role := strings.TrimSpace(in.RoleTitle)
	if role == "" {
		return nil, &entities.ValidationError{Field: "role_title", Message: "missing required field: role_title"}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, &entities.ValidationError{Field: "confidence", Message: "confidence must be between 0 and 1"}
	}
	if v := in.Validity; v.From != nil && v.To != nil && v.To.Before(*v.From) {
		return nil, &entities.ValidationError{Field: "valid_to", Message: "valid_to precedes valid_from"}
	}
	if err := s.requireType(ctx, in.PersonID, entities.EntityPerson, "person_id"); err != nil {
		return nil, err
	}
	if in.OrgID != "" {
		if err := s.requireType(ctx, in.OrgID, entities.EntityOrg, "org_id"); err != nil {
			return nil, err
		}
	}

	return &entities.Affiliation{
		PersonID:      in.PersonID,
		OrgID:         in.OrgID,
		SymbolAliasID: in.SymbolAliasID,
		RoleTitle:     role,
		ValidFrom:     in.Validity.From,
		ValidTo:       in.Validity.To,
		Source:        in.Source,
		Confidence:    in.Confidence,
		CreatedAt:     s.now(),
	}, nil
}

func (s *EntityService) logAffiliationAdded(ctx context.Context, aff *entities.Affiliation) error {
	if err := s.store.LogAction(ctx, entities.ActionAffiliationAdded, aff.PersonID, map[string]any{
		"affiliation_id": aff.ID,
		"org_id":         aff.OrgID,
		"role_title":     aff.RoleTitle,
	}); err != nil {
		return fmt.Errorf("logging affiliation action: %w", err)
	}
	return nil
}

// SupersedeAffiliation closes every other open role of the person at the
// organization at the given time and records the new role from then on.
// The store applies both steps together.
//
// A role the person already holds at the organization keeps its row: an
// open one keeps running from the earlier of its start and at, and a closed
// one is reopened from at.
func (s *EntityService) SupersedeAffiliation(ctx context.Context, in AffiliationInput, at time.Time) (*entities.Affiliation, error) {
	from := at
	in.Validity = entities.Validity{From: &from}
	next, err := s.newAffiliation(ctx, in)
	if err != nil {
		return nil, err
	}

	current, err := s.store.FindAffiliationsByPerson(ctx, in.PersonID)
	if err != nil {
		return nil, fmt.Errorf("finding affiliations: %w", err)
	}

	sup := entities.Supersession{At: at, Next: next}
	for _, aff := range current {
		if aff.OrgID != in.OrgID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(aff.RoleTitle), next.RoleTitle) {
			next.ID = aff.ID
			next.RoleTitle = aff.RoleTitle
			next.CreatedAt = aff.CreatedAt
			next.SymbolAliasID = aff.SymbolAliasID
			if next.Source == "" {
				next.Source = aff.Source
			}
			if next.Confidence == 0 {
				next.Confidence = aff.Confidence
			}
			if aff.ValidTo == nil && (aff.ValidFrom == nil || aff.ValidFrom.Before(at)) {
				next.ValidFrom = aff.ValidFrom
			}
			sup.Rewrite = true
			continue
		}
		if aff.ValidTo != nil || !aff.ActiveAt(at) {
			continue
		}
		sup.Close = append(sup.Close, aff.ID)
	}

	if err := s.store.SupersedeAffiliations(ctx, sup); err != nil {
		if errors.Is(err, entities.ErrDuplicateAffiliation) {
			return nil, err
		}
		return nil, fmt.Errorf("superseding affiliations: %w", err)
	}

	if !sup.Rewrite {
		if err := s.logAffiliationAdded(ctx, next); err != nil {
			return nil, err
		}
	}
	if len(sup.Close) > 0 || sup.Rewrite {
		if err := s.store.LogAction(ctx, entities.ActionAffiliationSuperseded, in.PersonID, map[string]any{
			"closed":      sup.Close,
			"replaced_by": next.ID,
		}); err != nil {
			return nil, fmt.Errorf("logging affiliation action: %w", err)
		}
	}
	return next, nil
}

func (s *EntityService) requireType(ctx context.Context, id string, want entities.EntityType, field string) error {
	e, err := s.store.FindEntityByID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding %s: %w", field, err)
	}
	if e == nil {
		return fmt.Errorf("%s %s: %w", field, id, entities.ErrNotFound)
	}
	if e.Type != want {
		return &entities.ValidationError{Field: field, Message: fmt.Sprintf("entity %s is %s, want %s", id, e.Type, want)}
	}
	return nil
}

// FindBySymbol returns the entity holding the symbol alias. Exchange may be
// empty. Returns ErrNotFound when no symbol alias matches.
func (s *EntityService) FindBySymbol(ctx context.Context, symbol, exchange string) (*entities.Entity, error) {
	key := normalize.Symbol(symbol)
	if key == "" {
		return nil, entities.ErrNotFound
	}
	hits, err := s.store.FindAliases(ctx, entities.AliasFilter{
		Normalized: key,
		Types:      []entities.AliasType{entities.AliasSymbol},
		Exchange:   strings.ToUpper(strings.TrimSpace(exchange)),
	})
	if err != nil {
		return nil, fmt.Errorf("finding symbol: %w", err)
	}
	if len(hits) == 0 {
		return nil, entities.ErrNotFound
	}
	SortAliasHits(hits)
	return hits[0].Entity, nil
}

// FindByAlias returns exact normalized alias matches, optionally scoped to
// one alias type, ordered by primary flag, confidence and recency.
func (s *EntityService) FindByAlias(ctx context.Context, surface string, aliasType entities.AliasType) ([]entities.AliasHit, error) {
	filter := entities.AliasFilter{Normalized: AliasKey(surface, aliasType)}
	if aliasType != "" {
		filter.Types = []entities.AliasType{aliasType}
	}
	if filter.Normalized == "" {
		return nil, nil
	}
	hits, err := s.store.FindAliases(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("finding alias: %w", err)
	}
	SortAliasHits(hits)
	return hits, nil
}

// SortAliasHits orders hits by is_primary, then confidence descending,
// then most recently created.
func SortAliasHits(hits []entities.AliasHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Alias, hits[j].Alias
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// FindByID finds an entity by its ID.
func (s *EntityService) FindByID(ctx context.Context, id string) (*entities.Entity, error) {
	return s.store.FindEntityByID(ctx, id)
}

// Details returns an entity with its aliases and affiliations.
func (s *EntityService) Details(ctx context.Context, id string) (*EntityDetails, error) {
	e, err := s.store.FindEntityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, entities.ErrNotFound)
	}

	aliases, err := s.store.ListAliases(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}

	var affs []entities.Affiliation
	if e.Type == entities.EntityPerson {
		affs, err = s.store.FindAffiliationsByPerson(ctx, id)
	} else {
		affs, err = s.store.FindAffiliationsByOrg(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("listing affiliations: %w", err)
	}

	return &EntityDetails{Entity: e, Aliases: aliases, Affiliations: affs}, nil
}

// List returns entities with pagination.
func (s *EntityService) List(ctx context.Context, entityType entities.EntityType, limit, offset int) ([]*entities.Entity, error) {
	return s.store.ListEntities(ctx, entityType, limit, offset)
}

// Search searches entities by name substring.
func (s *EntityService) Search(ctx context.Context, query string, limit int) ([]*entities.Entity, error) {
	return s.store.SearchEntities(ctx, query, limit)
}

// Count returns the number of entities.
func (s *EntityService) Count(ctx context.Context) (int, error) {
	return s.store.CountEntities(ctx)
}

// Delete removes an entity. Aliases and affiliations go with it.
func (s *EntityService) Delete(ctx context.Context, id string) error {
	aliases, err := s.store.ListAliases(ctx, id)
	if err != nil {
		return fmt.Errorf("listing aliases: %w", err)
	}

	if err := s.store.DeleteEntity(ctx, id); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	if err := s.store.LogAction(ctx, entities.ActionEntityDeleted, id, map[string]any{"aliases": len(aliases)}); err != nil {
		return fmt.Errorf("logging entity action: %w", err)
	}

	if s.indexer != nil {
		for _, a := range aliases {
			if err := s.indexer.RemoveAlias(ctx, a.ID); err != nil {
				s.logger.Warn("alias index delete failed", "alias_id", a.ID, "error", err)
			}
		}
	}
	return nil
}

// AuditLog returns the audit trail of an entity.
func (s *EntityService) AuditLog(ctx context.Context, id string) ([]entities.AuditEntry, error) {
	return s.store.FindAuditLog(ctx, id)
}

// PromoteCacheHit turns one result of a cached provider hit into a new
// entity with an aka alias for the original query.
func (s *EntityService) PromoteCacheHit(ctx context.Context, entry *entities.CacheEntry, index int, entityType entities.EntityType) (*entities.Entity, error) {
	if entry == nil || entry.Status != entities.CacheOK {
		return nil, &entities.ValidationError{Field: "entry", Message: "only ok cache entries can be promoted"}
	}
	if index < 0 || index >= len(entry.Results) {
		return nil, &entities.ValidationError{Field: "index", Message: fmt.Sprintf("result index %d out of range", index)}
	}
	res := entry.Results[index]
	title := strings.TrimSpace(res.Title)

	var e *entities.Entity
	var err error
	if entityType == entities.EntityPerson {
		e, err = s.CreatePerson(ctx, title)
	} else {
		candidate := &entities.Entity{Type: entityType, CanonicalFull: title, DisplayName: title}
		if entityType == entities.EntityOrg {
			candidate.Profile = &entities.OrgProfile{Summary: res.Snippet, Website: res.URL}
		}
		e, err = s.UpsertEntity(ctx, candidate)
	}
	if err != nil {
		return nil, fmt.Errorf("promoting cache hit: %w", err)
	}

	source := "lookup:" + entry.Provider
	if _, err := s.AddAlias(ctx, AliasInput{
		EntityID: e.ID, Text: title, Type: entities.AliasDisplayName, Source: source, Confidence: res.RelevanceScore,
	}); err != nil {
		return nil, err
	}
	query := entry.Query
	if query == "" {
		query = entry.NormalizedQuery
	}
	if AliasKey(query, entities.AliasAKA) != AliasKey(title, entities.AliasAKA) {
		if _, err := s.AddAlias(ctx, AliasInput{
			EntityID: e.ID, Text: query, Type: entities.AliasAKA, Source: source, Confidence: res.RelevanceScore,
		}); err != nil {
			return nil, err
		}
	}
	if symbol := res.Metadata["symbol"]; symbol != "" && entityType == entities.EntityOrg {
		if _, err := s.AddAlias(ctx, AliasInput{
			EntityID: e.ID, Text: symbol, Type: entities.AliasSymbol, Source: source, Confidence: res.RelevanceScore,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.store.LogAction(ctx, entities.ActionCacheHitPromoted, e.ID, map[string]any{
		"provider": entry.Provider,
		"query":    entry.NormalizedQuery,
		"url":      res.URL,
	}); err != nil {
		return nil, fmt.Errorf("logging promotion: %w", err)
	}
	return e, nil
}
