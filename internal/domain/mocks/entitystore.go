package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// EntityStore is an in-memory mock implementation of ports.EntityStore.
type EntityStore struct {
	mu sync.Mutex

	Entities     map[string]*entities.Entity
	Identities   map[string]string
	Aliases      []entities.Alias
	Affiliations []entities.Affiliation
	Audit        []entities.AuditEntry
	Err          error

	// Call tracking
	FindAliasesCallCount int
	FindPersonsCallCount int
}

// NewEntityStore creates a new mock EntityStore.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		Entities:   make(map[string]*entities.Entity),
		Identities: make(map[string]string),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *EntityStore) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *EntityStore) Close() error {
	return nil
}

// UpsertEntity inserts or merges an entity by identity key.
func (m *EntityStore) UpsertEntity(_ context.Context, e *entities.Entity, identityKey string) (*entities.Entity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}

	if id, ok := m.Identities[identityKey]; ok {
		existing := m.Entities[id]
		if e.DisplayName != "" {
			existing.DisplayName = e.DisplayName
		}
		if e.Profile != nil {
			existing.Profile = e.Profile
		}
		if e.Person != nil && e.Person.Middle != "" && existing.Person != nil && existing.Person.Middle == "" {
			existing.Person.Middle = e.Person.Middle
			existing.Keys = e.Keys
		}
		existing.UpdatedAt = e.UpdatedAt
		cp := *existing
		return &cp, false, nil
	}

	stored := *e
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	m.Entities[stored.ID] = &stored
	m.Identities[identityKey] = stored.ID
	cp := stored
	return &cp, true, nil
}

// FindEntityByID finds an entity by its ID.
func (m *EntityStore) FindEntityByID(_ context.Context, id string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.Entities[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// FindEntityByIdentity finds an entity by its identity key.
func (m *EntityStore) FindEntityByIdentity(_ context.Context, identityKey string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	id, ok := m.Identities[identityKey]
	if !ok {
		return nil, nil
	}
	cp := *m.Entities[id]
	return &cp, nil
}

// ListEntities lists entities sorted by ID.
func (m *EntityStore) ListEntities(_ context.Context, entityType entities.EntityType, limit, offset int) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.Entity
	for _, e := range m.sortedLocked() {
		if entityType == "" || e.Type == entityType {
			result = append(result, e)
		}
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SearchEntities matches entity labels by substring.
func (m *EntityStore) SearchEntities(_ context.Context, query string, limit int) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(query)
	var result []*entities.Entity
	for _, e := range m.sortedLocked() {
		if strings.Contains(strings.ToLower(e.Label()), q) {
			result = append(result, e)
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// CountEntities returns the number of entities.
func (m *EntityStore) CountEntities(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entities), m.Err
}

// DeleteEntity deletes an entity and cascades to aliases and affiliations.
func (m *EntityStore) DeleteEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Entities, id)
	for k, v := range m.Identities {
		if v == id {
			delete(m.Identities, k)
		}
	}
	aliases := m.Aliases[:0]
	for _, a := range m.Aliases {
		if a.EntityID != id {
			aliases = append(aliases, a)
		}
	}
	m.Aliases = aliases
	affs := m.Affiliations[:0]
	for _, a := range m.Affiliations {
		if a.PersonID != id && a.OrgID != id {
			affs = append(affs, a)
		}
	}
	m.Affiliations = affs
	return nil
}

// FindPersons finds persons by family name and given initial or prefix.
func (m *EntityStore) FindPersons(_ context.Context, q entities.PersonQuery) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindPersonsCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.Entity
	for _, e := range m.sortedLocked() {
		if e.Type != entities.EntityPerson || e.Keys == nil || e.Keys.FamilyNorm != q.FamilyNorm {
			continue
		}
		if q.GivenInitial == "" && q.GivenPrefix3 == "" {
			result = append(result, e)
			continue
		}
		if (q.GivenInitial != "" && e.Keys.GivenInitial == q.GivenInitial) ||
			(q.GivenPrefix3 != "" && e.Keys.GivenPrefix3 == q.GivenPrefix3) {
			result = append(result, e)
		}
	}
	return result, nil
}

// InsertAlias stores an alias unless its unique key exists.
func (m *EntityStore) InsertAlias(_ context.Context, alias *entities.Alias) (*entities.Alias, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	for _, a := range m.Aliases {
		if a.EntityID == alias.EntityID && a.Type == alias.Type && a.Normalized == alias.Normalized {
			cp := a
			return &cp, false, nil
		}
	}
	stored := *alias
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.Aliases = append(m.Aliases, stored)
	return &stored, true, nil
}

// FindAliases returns exact alias matches in insertion order.
func (m *EntityStore) FindAliases(_ context.Context, f entities.AliasFilter) ([]entities.AliasHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindAliasesCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	var hits []entities.AliasHit
	for _, a := range m.Aliases {
		if f.Normalized != "" && a.Normalized != f.Normalized {
			continue
		}
		if f.EntityID != "" && a.EntityID != f.EntityID {
			continue
		}
		if f.Exchange != "" && a.PrimaryExchange != f.Exchange {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, a.Type) {
			continue
		}
		e, ok := m.Entities[a.EntityID]
		if !ok || (f.EntityType != "" && e.Type != f.EntityType) {
			continue
		}
		cp := *e
		hits = append(hits, entities.AliasHit{Entity: &cp, Alias: a})
		if f.Limit > 0 && len(hits) == f.Limit {
			break
		}
	}
	return hits, nil
}

// ListAliases lists aliases of an entity.
func (m *EntityStore) ListAliases(_ context.Context, entityID string) ([]entities.Alias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.Alias
	for _, a := range m.Aliases {
		if a.EntityID == entityID {
			result = append(result, a)
		}
	}
	return result, nil
}

// DeleteAlias deletes an alias by ID.
func (m *EntityStore) DeleteAlias(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, a := range m.Aliases {
		if a.ID == id {
			m.Aliases = append(m.Aliases[:i], m.Aliases[i+1:]...)
			return nil
		}
	}
	return nil
}

// InsertAffiliation stores an affiliation unless (person, org, role) exists.
func (m *EntityStore) InsertAffiliation(_ context.Context, aff *entities.Affiliation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, a := range m.Affiliations {
		if a.PersonID == aff.PersonID && a.OrgID == aff.OrgID &&
			strings.EqualFold(a.RoleTitle, aff.RoleTitle) {
			return entities.ErrDuplicateAffiliation
		}
	}
	if aff.ID == "" {
		aff.ID = uuid.New().String()
	}
	m.Affiliations = append(m.Affiliations, *aff)
	return nil
}

// FindAffiliationsByPerson lists affiliations of a person, newest first.
func (m *EntityStore) FindAffiliationsByPerson(_ context.Context, personID string) ([]entities.Affiliation, error) {
	return m.filterAffiliations(func(a entities.Affiliation) bool { return a.PersonID == personID })
}

// FindAffiliationsByOrg lists affiliations at an organization, newest first.
func (m *EntityStore) FindAffiliationsByOrg(_ context.Context, orgID string) ([]entities.Affiliation, error) {
	return m.filterAffiliations(func(a entities.Affiliation) bool { return a.OrgID == orgID })
}

func (m *EntityStore) filterAffiliations(keep func(entities.Affiliation) bool) ([]entities.Affiliation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.Affiliation
	for i := len(m.Affiliations) - 1; i >= 0; i-- {
		if keep(m.Affiliations[i]) {
			result = append(result, m.Affiliations[i])
		}
	}
	return result, nil
}

// SupersedeAffiliations applies the supersession to a copy and keeps it
// only when every step succeeds.
func (m *EntityStore) SupersedeAffiliations(_ context.Context, sup entities.Supersession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	affs := append([]entities.Affiliation(nil), m.Affiliations...)
	index := func(id string) int {
		for i := range affs {
			if affs[i].ID == id {
				return i
			}
		}
		return -1
	}
	for _, id := range sup.Close {
		i := index(id)
		if i < 0 {
			return entities.ErrNotFound
		}
		at := sup.At
		affs[i].ValidTo = &at
	}

	switch next := sup.Next; {
	case next == nil:
	case sup.Rewrite:
		i := index(next.ID)
		if i < 0 {
			return entities.ErrNotFound
		}
		affs[i].ValidFrom = next.ValidFrom
		affs[i].ValidTo = next.ValidTo
		affs[i].Source = next.Source
		affs[i].Confidence = next.Confidence
	default:
		for _, a := range affs {
			if a.PersonID == next.PersonID && a.OrgID == next.OrgID &&
				strings.EqualFold(strings.TrimSpace(a.RoleTitle), strings.TrimSpace(next.RoleTitle)) {
				return entities.ErrDuplicateAffiliation
			}
		}
		if next.ID == "" {
			next.ID = uuid.New().String()
		}
		affs = append(affs, *next)
	}

	m.Affiliations = affs
	return nil
}

// FindAffiliatedSymbols resolves symbols through affiliations.
func (m *EntityStore) FindAffiliatedSymbols(_ context.Context, personID string) ([]entities.AffiliatedSymbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AffiliatedSymbol
	for _, aff := range m.Affiliations {
		if aff.PersonID != personID {
			continue
		}
		for _, a := range m.Aliases {
			direct := aff.SymbolAliasID != "" && a.ID == aff.SymbolAliasID
			viaOrg := aff.OrgID != "" && a.EntityID == aff.OrgID && a.Type == entities.AliasSymbol
			if direct || viaOrg {
				result = append(result, entities.AffiliatedSymbol{
					AffiliationID: aff.ID,
					PersonID:      aff.PersonID,
					OrgID:         aff.OrgID,
					Symbol:        a.Normalized,
					ValidFrom:     aff.ValidFrom,
					ValidTo:       aff.ValidTo,
					CreatedAt:     aff.CreatedAt,
				})
			}
		}
	}
	return result, nil
}

// LogAction appends to the audit log.
func (m *EntityStore) LogAction(_ context.Context, action string, entityID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// FindAuditLog finds audit entries for an entity.
func (m *EntityStore) FindAuditLog(_ context.Context, entityID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for _, e := range m.Audit {
		if e.EntityID == entityID {
			result = append(result, e)
		}
	}
	return result, m.Err
}

// FindAuditLogByAction finds audit entries by action.
func (m *EntityStore) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for _, e := range m.Audit {
		if e.Action == action {
			result = append(result, e)
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, m.Err
}

func (m *EntityStore) sortedLocked() []*entities.Entity {
	result := make([]*entities.Entity, 0, len(m.Entities))
	for _, e := range m.Entities {
		cp := *e
		result = append(result, &cp)
	}
	// Sort by ID for deterministic test results
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func containsType(types []entities.AliasType, t entities.AliasType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
