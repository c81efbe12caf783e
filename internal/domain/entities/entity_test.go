package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_Validate(t *testing.T) {
	tests := []struct {
		name      string
		entity    Entity
		wantField string
	}{
		{
			name:   "org with canonical name is valid",
			entity: Entity{Type: EntityOrg, CanonicalFull: "Apple Inc."},
		},
		{
			name:   "org with profile is valid",
			entity: Entity{Type: EntityOrg, CanonicalFull: "Apple Inc.", Profile: &OrgProfile{Sector: "Technology"}},
		},
		{
			name:   "person with given and family is valid",
			entity: Entity{Type: EntityPerson, Person: &PersonName{Given: "Tim", Family: "Cook"}},
		},
		{
			name:      "unknown type is invalid",
			entity:    Entity{Type: "planet", CanonicalFull: "Mars"},
			wantField: "entity_type",
		},
		{
			name:      "org without canonical name is invalid",
			entity:    Entity{Type: EntityOrg},
			wantField: "canonical_full",
		},
		{
			name:      "person without name is invalid",
			entity:    Entity{Type: EntityPerson},
			wantField: "person",
		},
		{
			name:      "person without family is invalid",
			entity:    Entity{Type: EntityPerson, Person: &PersonName{Given: "Tim"}},
			wantField: "family",
		},
		{
			name:      "person without given is invalid",
			entity:    Entity{Type: EntityPerson, Person: &PersonName{Family: "Cook"}},
			wantField: "given",
		},
		{
			name:      "org with person fields is invalid",
			entity:    Entity{Type: EntityOrg, CanonicalFull: "Apple", Person: &PersonName{Given: "Tim", Family: "Cook"}},
			wantField: "person",
		},
		{
			name:      "fund with profile is invalid",
			entity:    Entity{Type: EntityFund, CanonicalFull: "SPDR S&P 500", Profile: &OrgProfile{Sector: "ETF"}},
			wantField: "profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestEntity_Label(t *testing.T) {
	assert.Equal(t, "Apple", (&Entity{DisplayName: "Apple", CanonicalFull: "Apple Inc."}).Label())
	assert.Equal(t, "Apple Inc.", (&Entity{CanonicalFull: "Apple Inc."}).Label())
	assert.Equal(t, "Timothy D Cook", (&Entity{Person: &PersonName{Given: "Timothy", Middle: "D", Family: "Cook"}}).Label())
	assert.Equal(t, "e1", (&Entity{ID: "e1"}).Label())
}

func TestParseEntityType(t *testing.T) {
	typ, err := ParseEntityType(" Regulator ")
	require.NoError(t, err)
	assert.Equal(t, EntityRegulator, typ)

	_, err = ParseEntityType("planet")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAliasType_PriorityCoversAllTypes(t *testing.T) {
	seen := make(map[int]AliasType)
	for i, typ := range AliasTypes {
		assert.True(t, typ.IsValid(), "alias type %s should be valid", typ)
		assert.Equal(t, i, typ.Priority(), "alias type %s out of order", typ)
		_, dup := seen[typ.Priority()]
		assert.False(t, dup, "priority collision for %s", typ)
		seen[typ.Priority()] = typ
	}
	assert.False(t, AliasType("nickname").IsValid())
}

func TestParseAliasType(t *testing.T) {
	assert.Equal(t, AliasSymbol, ParseAliasType("SYMBOL"))
	assert.Equal(t, AliasFormerName, ParseAliasType("former_name"))
	assert.Equal(t, AliasOther, ParseAliasType("nickname"))
	assert.Equal(t, AliasOther, ParseAliasType(""))
}

func TestAliasType_LongNameBeatsSymbol(t *testing.T) {
	assert.Less(t, AliasLongName.Priority(), AliasSymbol.Priority())
	assert.Less(t, AliasSymbol.Priority(), AliasTickerOld.Priority())
}

func TestAffiliation_ActiveAt(t *testing.T) {
	from := time.Date(2011, 8, 24, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Affiliation{ValidFrom: &from, ValidTo: &to}

	assert.False(t, a.ActiveAt(from.Add(-time.Hour)))
	assert.True(t, a.ActiveAt(from))
	assert.True(t, a.ActiveAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, a.ActiveAt(to))
	assert.True(t, (&Affiliation{}).ActiveAt(time.Now()))
}

func TestProviderError_Is(t *testing.T) {
	limited := &ProviderError{Provider: "google_cse", HTTPCode: 429, RateLimited: true, Err: errors.New("quota")}
	assert.ErrorIs(t, limited, ErrProviderRateLimited)
	assert.ErrorIs(t, limited, ErrProviderFailed)
	assert.Contains(t, limited.Error(), "http 429")

	failed := &ProviderError{Provider: "wikipedia", Err: errors.New("boom")}
	assert.NotErrorIs(t, failed, ErrProviderRateLimited)
	assert.ErrorIs(t, failed, ErrProviderFailed)
}

func TestCacheEntry_InBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(15 * time.Minute)

	assert.True(t, (&CacheEntry{Status: CacheError, BackoffUntil: &later}).InBackoff(now))
	assert.True(t, (&CacheEntry{Status: CacheRateLimited, BackoffUntil: &later}).InBackoff(now))
	assert.False(t, (&CacheEntry{Status: CacheError, BackoffUntil: &later}).InBackoff(later))
	assert.False(t, (&CacheEntry{Status: CacheOK, BackoffUntil: &later}).InBackoff(now))
	assert.False(t, (&CacheEntry{Status: CacheError}).InBackoff(now))
}

func TestParseMentionKind(t *testing.T) {
	assert.Equal(t, MentionPerson, ParseMentionKind("Person"))
	assert.Equal(t, MentionOrg, ParseMentionKind("company"))
	assert.Equal(t, MentionSymbol, ParseMentionKind("ticker"))
	assert.Equal(t, MentionOther, ParseMentionKind("galaxy"))

	typ, ok := MentionOrg.EntityType()
	assert.True(t, ok)
	assert.Equal(t, EntityOrg, typ)
	_, ok = MentionSymbol.EntityType()
	assert.False(t, ok)
}
