package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/normalize"
	"github.com/ersonp/newsground/internal/infrastructure/parsers"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun       bool   // Validate without saving
	Source       string // Provenance recorded on aliases and affiliations
	SkipOfficers bool   // Import organizations only
}

// ImportError represents an error for a specific record during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Orgs         int
	Persons      int
	Aliases      int
	Affiliations int
	Skipped      int
	Errors       []ImportError
}

// ImportService turns organization profiles into entities, aliases and
// officer affiliations.
type ImportService struct {
	entities *EntityService
}

// NewImportService creates a new import service.
func NewImportService(entityService *EntityService) *ImportService {
	return &ImportService{entities: entityService}
}

// Import validates and imports raw profiles. Invalid records are reported
// in the result; storage failures abort the import.
func (s *ImportService) Import(ctx context.Context, raws []parsers.RawOrg, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}
	source := opts.Source
	if source == "" {
		source = "import"
	}

	for i := range raws {
		raw := &raws[i]
		lineNum := raw.LineNum
		if lineNum == 0 {
			lineNum = i + 1
		}

		if ierr := validateRawOrg(raw, lineNum); ierr != nil {
			result.Errors = append(result.Errors, *ierr)
			continue
		}
		if opts.DryRun {
			result.Orgs++
			result.Persons += len(raw.Officers)
			continue
		}

		if err := s.importOrg(ctx, raw, lineNum, source, opts, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// validateRawOrg validates a single raw profile and returns an error if invalid.
func validateRawOrg(raw *parsers.RawOrg, lineNum int) *ImportError {
	if canonicalName(raw) == "" {
		return &ImportError{Line: lineNum, Field: "long_name", Message: "missing required field: one of symbol, long_name, short_name, display_name"}
	}

	if raw.EntityType != "" {
		if _, err := entities.ParseEntityType(raw.EntityType); err != nil {
			return &ImportError{Line: lineNum, Field: "entity_type", Value: raw.EntityType, Message: err.Error()}
		}
		if entities.EntityType(strings.ToLower(raw.EntityType)) == entities.EntityPerson {
			return &ImportError{Line: lineNum, Field: "entity_type", Value: raw.EntityType, Message: "person records are imported as officers"}
		}
	}

	if raw.Confidence != nil && (*raw.Confidence < 0 || *raw.Confidence > 1) {
		return &ImportError{
			Line:    lineNum,
			Field:   "confidence",
			Value:   fmt.Sprintf("%f", *raw.Confidence),
			Message: "confidence must be between 0 and 1",
		}
	}

	if raw.Symbol != "" && !normalize.LooksLikeTicker(strings.ToUpper(raw.Symbol)) {
		return &ImportError{Line: lineNum, Field: "symbol", Value: raw.Symbol, Message: fmt.Sprintf("invalid symbol %q", raw.Symbol)}
	}

	return nil
}

func canonicalName(raw *parsers.RawOrg) string {
	for _, s := range []string{raw.LongName, raw.ShortName, raw.DisplayName, raw.Symbol} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func (s *ImportService) importOrg(ctx context.Context, raw *parsers.RawOrg, lineNum int, source string, opts ImportOptions, result *ImportResult) error {
	entityType := entities.EntityOrg
	if raw.EntityType != "" {
		entityType = entities.EntityType(strings.ToLower(strings.TrimSpace(raw.EntityType)))
	}
	confidence := 1.0
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}

	display := raw.DisplayName
	if display == "" {
		display = raw.ShortName
	}
	org := &entities.Entity{
		Type:          entityType,
		CanonicalFull: canonicalName(raw),
		DisplayName:   display,
	}
	if entityType == entities.EntityOrg {
		profile := entities.OrgProfile{
			Summary:   raw.Summary,
			Website:   raw.Website,
			Address:   raw.Address,
			City:      raw.City,
			Country:   raw.Country,
			Sector:    raw.Sector,
			Industry:  raw.Industry,
			Employees: raw.Employees,
		}
		if !profile.IsZero() {
			org.Profile = &profile
		}
	}

	stored, err := s.entities.UpsertEntity(ctx, org)
	if err != nil {
		return fmt.Errorf("line %d: %w", lineNum, err)
	}
	result.Orgs++

	var symbolAlias *entities.Alias
	if raw.Symbol != "" {
		symbolAlias, err = s.entities.AddAlias(ctx, AliasInput{
			EntityID:        stored.ID,
			Text:            strings.ToUpper(strings.TrimSpace(raw.Symbol)),
			Type:            entities.AliasSymbol,
			Source:          source,
			Confidence:      confidence,
			PrimaryExchange: raw.Exchange,
			IsPrimary:       true,
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		result.Aliases++
	}

	names := []struct {
		text string
		typ  entities.AliasType
	}{
		{raw.LongName, entities.AliasLongName},
		{raw.ShortName, entities.AliasShortName},
		{raw.DisplayName, entities.AliasDisplayName},
	}
	for _, former := range raw.FormerNames {
		names = append(names, struct {
			text string
			typ  entities.AliasType
		}{former, entities.AliasFormerName})
	}
	for _, n := range names {
		if strings.TrimSpace(n.text) == "" {
			continue
		}
		if _, err := s.entities.AddAlias(ctx, AliasInput{
			EntityID:   stored.ID,
			Text:       n.text,
			Type:       n.typ,
			Source:     source,
			Confidence: confidence,
		}); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		result.Aliases++
	}

	if opts.SkipOfficers || entityType != entities.EntityOrg {
		return nil
	}
	for _, officer := range raw.Officers {
		if err := s.importOfficer(ctx, officer, stored, symbolAlias, lineNum, source, confidence, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *ImportService) importOfficer(ctx context.Context, officer parsers.RawOfficer, org *entities.Entity, symbolAlias *entities.Alias, lineNum int, source string, confidence float64, result *ImportResult) error {
	stripped := normalize.StripHonorifics(officer.Name)
	if len(strings.Fields(stripped)) < 2 {
		result.Errors = append(result.Errors, ImportError{
			Line:    lineNum,
			Field:   "officers.name",
			Value:   officer.Name,
			Message: fmt.Sprintf("officer name %q needs a given and a family name", officer.Name),
		})
		return nil
	}

	person, err := s.entities.CreatePerson(ctx, officer.Name)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			result.Errors = append(result.Errors, ImportError{Line: lineNum, Field: "officers.name", Value: officer.Name, Message: err.Error()})
			return nil
		}
		return fmt.Errorf("line %d: %w", lineNum, err)
	}
	result.Persons++

	if _, err := s.entities.AddAlias(ctx, AliasInput{
		EntityID:   person.ID,
		Text:       stripped,
		Type:       entities.AliasDisplayName,
		Source:     source,
		Confidence: confidence,
	}); err != nil {
		return fmt.Errorf("line %d: %w", lineNum, err)
	}
	result.Aliases++

	title := strings.TrimSpace(officer.Title)
	if title == "" {
		title = "officer"
	}
	in := AffiliationInput{
		PersonID:   person.ID,
		OrgID:      org.ID,
		RoleTitle:  title,
		Source:     source,
		Confidence: confidence,
	}
	if symbolAlias != nil {
		in.SymbolAliasID = symbolAlias.ID
	}
	if since, ok := parseSince(officer.Since); ok {
		in.Validity.From = &since
	}

	if _, err := s.entities.AddAffiliation(ctx, in); err != nil {
		if errors.Is(err, entities.ErrDuplicateAffiliation) {
			result.Skipped++
			return nil
		}
		return fmt.Errorf("line %d: %w", lineNum, err)
	}
	result.Affiliations++
	return nil
}

func parseSince(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
