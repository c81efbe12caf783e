package entities

import "time"

// Affiliation is a time-bounded role of a person at an organization.
// (PersonID, OrgID, RoleTitle) is unique.
type Affiliation struct {
	ID            string     `json:"id"`
	PersonID      string     `json:"person_id"`
	OrgID         string     `json:"org_id,omitempty"`
	SymbolAliasID string     `json:"symbol_alias_id,omitempty"`
	RoleTitle     string     `json:"role_title"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	Source        string     `json:"source,omitempty"`
	Confidence    float64    `json:"confidence"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveAt reports whether the validity window contains t.
// Missing bounds are treated as open.
func (a *Affiliation) ActiveAt(t time.Time) bool {
	if a.ValidFrom != nil && t.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidTo != nil && !t.Before(*a.ValidTo) {
		return false
	}
	return true
}

// Validity is an optional window for an affiliation.
type Validity struct {
	From *time.Time
	To   *time.Time
}

// AffiliatedSymbol is a market symbol reachable from a person through an affiliation.
type AffiliatedSymbol struct {
	AffiliationID string     `json:"affiliation_id"`
	PersonID      string     `json:"person_id"`
	OrgID         string     `json:"org_id,omitempty"`
	Symbol        string     `json:"symbol"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PersonQuery selects person entities by derived name keys.
// FamilyNorm is required. GivenInitial and GivenPrefix3 are alternatives.
type PersonQuery struct {
	FamilyNorm   string
	GivenInitial string
	GivenPrefix3 string
	Limit        int
}

// Supersession closes affiliations at a point in time and records the
// affiliation that follows them.
type Supersession struct {
	Close []string
	At    time.Time
	Next  *Affiliation
	// Rewrite updates the window, source and confidence of the existing
	// row Next.ID instead of inserting Next.
	Rewrite bool
}
