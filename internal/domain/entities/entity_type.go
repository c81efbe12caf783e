package entities

import (
	"fmt"
	"strings"
)

// EntityType is the category of a canonical entity. It is fixed at creation.
type EntityType string

const (
	EntityOrg       EntityType = "org"
	EntityPerson    EntityType = "person"
	EntityProduct   EntityType = "product"
	EntityFund      EntityType = "fund"
	EntityRegulator EntityType = "regulator"
	EntityOther     EntityType = "other"
)

// EntityTypeInfo describes a built-in entity type.
type EntityTypeInfo struct {
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
}

// EntityTypes lists every supported entity type in display order.
var EntityTypes = []EntityTypeInfo{
	{Type: EntityOrg, Description: "Companies, issuers, exchanges and other organizations"},
	{Type: EntityPerson, Description: "Executives, investors, officials and other people"},
	{Type: EntityProduct, Description: "Products and brands"},
	{Type: EntityFund, Description: "Funds, ETFs and investment vehicles"},
	{Type: EntityRegulator, Description: "Regulators and government agencies"},
	{Type: EntityOther, Description: "Anything that does not fit the other types"},
}

// IsValid reports whether t is one of the supported entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityOrg, EntityPerson, EntityProduct, EntityFund, EntityRegulator, EntityOther:
		return true
	}
	return false
}

// ParseEntityType parses a user-supplied entity type.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", &ValidationError{
			Field:   "entity_type",
			Message: fmt.Sprintf("invalid entity type %q (valid: %s)", s, strings.Join(EntityTypeNames(), ", ")),
		}
	}
	return t, nil
}

// EntityTypeNames returns the names of all entity types.
func EntityTypeNames() []string {
	names := make([]string, len(EntityTypes))
	for i, info := range EntityTypes {
		names[i] = string(info.Type)
	}
	return names
}
