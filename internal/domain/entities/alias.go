package entities

import (
	"strings"
	"time"
)

// AliasType classifies the surface form an alias represents.
// Unknown application-defined types map to AliasOther.
type AliasType string

const (
	AliasLongName    AliasType = "long_name"
	AliasShortName   AliasType = "short_name"
	AliasDisplayName AliasType = "display_name"
	AliasAKA         AliasType = "aka"
	AliasFormerName  AliasType = "former_name"
	AliasPersonShort AliasType = "person_short"
	AliasSymbol      AliasType = "symbol"
	AliasTickerOld   AliasType = "ticker_old"
	AliasOther       AliasType = "other"
)

// AliasTypes lists every alias type in match priority order.
var AliasTypes = []AliasType{
	AliasLongName,
	AliasShortName,
	AliasDisplayName,
	AliasAKA,
	AliasFormerName,
	AliasPersonShort,
	AliasSymbol,
	AliasTickerOld,
	AliasOther,
}

// Priority ranks alias types for exact alias matches. Lower wins.
func (t AliasType) Priority() int {
	switch t {
	case AliasLongName:
		return 0
	case AliasShortName:
		return 1
	case AliasDisplayName:
		return 2
	case AliasAKA:
		return 3
	case AliasFormerName:
		return 4
	case AliasPersonShort:
		return 5
	case AliasSymbol:
		return 6
	case AliasTickerOld:
		return 7
	case AliasOther:
		return 8
	}
	return len(AliasTypes)
}

// IsValid reports whether t is a known alias type.
func (t AliasType) IsValid() bool {
	return t.Priority() < len(AliasTypes)
}

// ParseAliasType maps a free-form alias type onto the closed set.
func ParseAliasType(s string) AliasType {
	t := AliasType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return AliasOther
}

// Alias is a surface form that denotes an entity.
// (EntityID, Type, Normalized) is unique. Aliases are never mutated in place.
type Alias struct {
	ID              string    `json:"id"`
	EntityID        string    `json:"entity_id"`
	Text            string    `json:"alias_text"`
	Type            AliasType `json:"alias_type"`
	Normalized      string    `json:"normalized"`
	Lang            string    `json:"lang,omitempty"`
	Script          string    `json:"script,omitempty"`
	Source          string    `json:"source,omitempty"`
	Confidence      float64   `json:"confidence"`
	PrimaryExchange string    `json:"primary_exchange,omitempty"`
	IsPrimary       bool      `json:"is_primary"`
	CreatedAt       time.Time `json:"created_at"`
}

// AliasMatch is an approximate text hit against the alias index.
type AliasMatch struct {
	AliasID    string  `json:"alias_id"`
	EntityID   string  `json:"entity_id"`
	Text       string  `json:"alias_text"`
	Normalized string  `json:"normalized"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
}

// AliasHit is an alias together with the entity it denotes.
type AliasHit struct {
	Entity *Entity `json:"entity"`
	Alias  Alias   `json:"alias"`
}

// AliasFilter narrows an exact alias query. Zero fields are ignored.
type AliasFilter struct {
	Normalized string
	Types      []AliasType
	EntityID   string
	EntityType EntityType
	Exchange   string
	Limit      int
}
