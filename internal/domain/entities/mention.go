package entities

import "strings"

// MentionKind is the extractor's guess at what a surface form denotes.
type MentionKind string

const (
	MentionOrg       MentionKind = "org"
	MentionPerson    MentionKind = "person"
	MentionProduct   MentionKind = "product"
	MentionFund      MentionKind = "fund"
	MentionRegulator MentionKind = "regulator"
	MentionSymbol    MentionKind = "symbol"
	MentionOther     MentionKind = "other"
)

// ParseMentionKind maps free-form input onto a mention kind, defaulting to other.
func ParseMentionKind(s string) MentionKind {
	k := MentionKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case MentionOrg, MentionPerson, MentionProduct, MentionFund, MentionRegulator, MentionSymbol, MentionOther:
		return k
	case "organization", "company":
		return MentionOrg
	case "ticker":
		return MentionSymbol
	}
	return MentionOther
}

// EntityType returns the entity type a mention kind expects, if any.
func (k MentionKind) EntityType() (EntityType, bool) {
	switch k {
	case MentionOrg:
		return EntityOrg, true
	case MentionPerson:
		return EntityPerson, true
	case MentionProduct:
		return EntityProduct, true
	case MentionFund:
		return EntityFund, true
	case MentionRegulator:
		return EntityRegulator, true
	}
	return "", false
}

// SourceContext carries hints from the article a mention was extracted from.
type SourceContext struct {
	SourceID string   `json:"source_id,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// Mention is an extracted surface form awaiting resolution.
type Mention struct {
	SurfaceForm string        `json:"surface_form"`
	Kind        MentionKind   `json:"kind"`
	Context     SourceContext `json:"context,omitempty"`
}

// Tier identifies the matcher that produced a candidate.
type Tier int

const (
	TierNone Tier = iota
	TierSymbol
	TierAlias
	TierPerson
	TierFullText
)

func (t Tier) String() string {
	switch t {
	case TierSymbol:
		return "symbol"
	case TierAlias:
		return "alias"
	case TierPerson:
		return "person"
	case TierFullText:
		return "fulltext"
	}
	return "none"
}

// Candidate is a possible referent for a mention.
type Candidate struct {
	Entity     *Entity `json:"entity"`
	Alias      *Alias  `json:"alias,omitempty"`
	Confidence float64 `json:"confidence"`
	Tier       Tier    `json:"tier"`
	Reason     string  `json:"reason,omitempty"`
}

// ResolutionStatus is the outcome class of a resolution.
type ResolutionStatus string

const (
	StatusResolved   ResolutionStatus = "resolved"
	StatusAmbiguous  ResolutionStatus = "ambiguous"
	StatusCandidates ResolutionStatus = "candidates"
	StatusUnresolved ResolutionStatus = "unresolved"
)

// Resolution is the result of resolving one mention.
type Resolution struct {
	Mention    Mention          `json:"mention"`
	Status     ResolutionStatus `json:"status"`
	EntityID   string           `json:"entity_id,omitempty"`
	Confidence float64          `json:"confidence"`
	Tier       Tier             `json:"tier"`
	Candidates []Candidate      `json:"candidates,omitempty"`
}
