package handlers

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

// EntityHandler handles entity operations at the application layer.
type EntityHandler struct {
	entityService *services.EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityService *services.EntityService) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
	}
}

// EntityListResult contains the result of listing entities.
type EntityListResult struct {
	Entities []*entities.Entity `json:"entities"`
	Total    int                `json:"total"`
}

// HandleList returns entities with pagination, optionally of one type.
func (h *EntityHandler) HandleList(ctx context.Context, entityType string, limit, offset int) (*EntityListResult, error) {
	var typ entities.EntityType
	if entityType != "" {
		t, err := entities.ParseEntityType(entityType)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	list, err := h.entityService.List(ctx, typ, limit, offset)
	if err != nil {
		return nil, err
	}

	count, err := h.entityService.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: list,
		Total:    count,
	}, nil
}

// HandleSearch searches entities by canonical name.
func (h *EntityHandler) HandleSearch(ctx context.Context, query string, limit int) (*EntityListResult, error) {
	list, err := h.entityService.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: list,
		Total:    len(list),
	}, nil
}

// HandleShow returns an entity with its aliases and affiliations.
func (h *EntityHandler) HandleShow(ctx context.Context, id string) (*services.EntityDetails, error) {
	return h.entityService.Details(ctx, id)
}

// HandleAudit returns the audit trail of an entity.
func (h *EntityHandler) HandleAudit(ctx context.Context, id string) ([]entities.AuditEntry, error) {
	return h.entityService.AuditLog(ctx, id)
}

// HandleDelete removes an entity with its aliases and affiliations.
func (h *EntityHandler) HandleDelete(ctx context.Context, id string) error {
	return h.entityService.Delete(ctx, id)
}

// CreateEntityRequest describes an entity created by hand.
type CreateEntityRequest struct {
	Type    string
	Name    string
	Summary string
	Website string
}

// HandleCreate creates an entity, or merges into the one with the same
// identity. Persons have their name parsed into components.
func (h *EntityHandler) HandleCreate(ctx context.Context, req CreateEntityRequest) (*entities.Entity, error) {
	typ, err := entities.ParseEntityType(req.Type)
	if err != nil {
		return nil, err
	}
	if typ == entities.EntityPerson {
		return h.entityService.CreatePerson(ctx, req.Name)
	}

	e := &entities.Entity{Type: typ, CanonicalFull: req.Name, DisplayName: req.Name}
	if req.Summary != "" || req.Website != "" {
		e.Profile = &entities.OrgProfile{Summary: req.Summary, Website: req.Website}
	}
	return h.entityService.UpsertEntity(ctx, e)
}

// AddAliasRequest describes an alias added by hand.
type AddAliasRequest struct {
	EntityID   string
	Text       string
	Type       string
	Exchange   string
	Primary    bool
	Source     string
	Confidence float64
}

// HandleAddAlias attaches an alias to an entity.
func (h *EntityHandler) HandleAddAlias(ctx context.Context, req AddAliasRequest) (*entities.Alias, error) {
	source := req.Source
	if source == "" {
		source = "manual"
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1
	}
	return h.entityService.AddAlias(ctx, services.AliasInput{
		EntityID:        req.EntityID,
		Text:            req.Text,
		Type:            entities.ParseAliasType(req.Type),
		Source:          source,
		Confidence:      confidence,
		PrimaryExchange: req.Exchange,
		IsPrimary:       req.Primary,
	})
}

// HandleDeleteAlias removes one alias of an entity.
func (h *EntityHandler) HandleDeleteAlias(ctx context.Context, entityID, aliasID string) error {
	return h.entityService.DeleteAlias(ctx, entityID, aliasID)
}
