package entities

import (
	"strings"
	"time"
)

// PersonName holds the identity fields of a person entity.
type PersonName struct {
	Given  string `json:"given"`
	Middle string `json:"middle,omitempty"`
	Family string `json:"family"`
	Suffix string `json:"suffix,omitempty"`
}

// Full returns the name fields joined with single spaces.
func (n PersonName) Full() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{n.Given, n.Middle, n.Family, n.Suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// PersonKeys are the derived matching keys of a person name.
// They are recomputed whenever the name fields change.
type PersonKeys struct {
	GivenNorm       string `json:"given_norm,omitempty"`
	FamilyNorm      string `json:"family_norm"`
	GivenInitial    string `json:"given_initial,omitempty"`
	GivenPrefix3    string `json:"given_prefix3,omitempty"`
	MiddleInitials  string `json:"middle_initials,omitempty"`
	FullNormNoHonor string `json:"full_norm_no_honor"`
}

// OrgProfile holds descriptive, non-authoritative organization attributes.
// Profile enrichment never changes identity fields.
type OrgProfile struct {
	Summary   string `json:"summary,omitempty"`
	Website   string `json:"website,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`
	Sector    string `json:"sector,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Employees int    `json:"employees,omitempty"`
}

// IsZero reports whether no profile field is set.
func (p OrgProfile) IsZero() bool {
	return p == OrgProfile{}
}

// Entity is one canonical real-world referent.
type Entity struct {
	ID            string      `json:"id"`
	Type          EntityType  `json:"entity_type"`
	CanonicalFull string      `json:"canonical_full,omitempty"`
	DisplayName   string      `json:"display_name,omitempty"`
	Person        *PersonName `json:"person,omitempty"`
	Keys          *PersonKeys `json:"person_keys,omitempty"`
	Profile       *OrgProfile `json:"profile,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Label returns the best human-readable name for the entity.
func (e *Entity) Label() string {
	switch {
	case e.DisplayName != "":
		return e.DisplayName
	case e.CanonicalFull != "":
		return e.CanonicalFull
	case e.Person != nil:
		return e.Person.Full()
	}
	return e.ID
}

// Validate checks that exactly one type-specific field group is populated.
func (e *Entity) Validate() error {
	if !e.Type.IsValid() {
		return &ValidationError{Field: "entity_type", Message: "invalid entity type: " + string(e.Type)}
	}

	if e.Type == EntityPerson {
		if e.Person == nil {
			return &ValidationError{Field: "person", Message: "person entities require given and family names"}
		}
		if strings.TrimSpace(e.Person.Given) == "" {
			return &ValidationError{Field: "given", Message: "missing required field: given"}
		}
		if strings.TrimSpace(e.Person.Family) == "" {
			return &ValidationError{Field: "family", Message: "missing required field: family"}
		}
		if e.Profile != nil && !e.Profile.IsZero() {
			return &ValidationError{Field: "profile", Message: "profile fields are only allowed on org entities"}
		}
		return nil
	}

	if e.Person != nil || e.Keys != nil {
		return &ValidationError{Field: "person", Message: "person name fields are only allowed on person entities"}
	}
	if strings.TrimSpace(e.CanonicalFull) == "" {
		return &ValidationError{Field: "canonical_full", Message: "missing required field: canonical_full"}
	}
	if e.Type != EntityOrg && e.Profile != nil && !e.Profile.IsZero() {
		return &ValidationError{Field: "profile", Message: "profile fields are only allowed on org entities"}
	}
	return nil
}
