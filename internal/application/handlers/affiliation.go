package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

// AffiliationHandler handles person to organization affiliations.
type AffiliationHandler struct {
	service *services.EntityService
	now     func() time.Time
}

// NewAffiliationHandler creates a new AffiliationHandler.
func NewAffiliationHandler(service *services.EntityService) *AffiliationHandler {
	return &AffiliationHandler{
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AffiliateRequest describes a role of a person at an organization.
type AffiliateRequest struct {
	PersonID   string
	OrgID      string
	Title      string
	From       string // YYYY-MM-DD or YYYY, empty means open
	To         string // YYYY-MM-DD or YYYY, empty means open
	Source     string
	Confidence float64
	// Supersede closes the person's open roles at the organization and
	// starts the new one at From, or now when From is empty.
	Supersede bool
}

// HandleAffiliate records an affiliation.
func (h *AffiliationHandler) HandleAffiliate(ctx context.Context, req AffiliateRequest) (*entities.Affiliation, error) {
	from, err := parseDate("valid_from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("valid_to", req.To)
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1
	}
	in := services.AffiliationInput{
		PersonID:   req.PersonID,
		OrgID:      req.OrgID,
		RoleTitle:  req.Title,
		Validity:   entities.Validity{From: from, To: to},
		Source:     source,
		Confidence: confidence,
	}

	if req.Supersede {
		at := h.now()
		if from != nil {
			at = *from
		}
		return h.service.SupersedeAffiliation(ctx, in, at)
	}
	return h.service.AddAffiliation(ctx, in)
}

// parseDate accepts YYYY-MM-DD or YYYY. Empty input is an open bound.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &entities.ValidationError{Field: field, Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD or YYYY)", s)}
}
