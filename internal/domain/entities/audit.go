package entities

import "time"

// Audit actions.
const (
	ActionEntityCreated         = "entity_created"
	ActionEntityUpdated         = "entity_updated"
	ActionEntityDeleted         = "entity_deleted"
	ActionAliasAdded            = "alias_added"
	ActionAliasDeleted          = "alias_deleted"
	ActionAffiliationAdded      = "affiliation_added"
	ActionAffiliationSuperseded = "affiliation_superseded"
	ActionCacheHitPromoted      = "cache_hit_promoted"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
