package handlers

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
	"github.com/ersonp/newsground/internal/infrastructure/parsers"
)

// LookupHandler handles the lookup cascade and its cache.
type LookupHandler struct {
	lookup        *services.LookupService
	entityService *services.EntityService
}

// NewLookupHandler creates a new lookup handler. entityService is only
// needed for promoting cache hits and may be nil.
func NewLookupHandler(lookup *services.LookupService, entityService *services.EntityService) *LookupHandler {
	return &LookupHandler{
		lookup:        lookup,
		entityService: entityService,
	}
}

// Handle runs the cascade for one query.
func (h *LookupHandler) Handle(ctx context.Context, query, kind string, force bool) (*entities.LookupOutcome, error) {
	return h.lookup.Lookup(ctx, services.LookupRequest{
		Query: query,
		Kind:  entities.ParseMentionKind(kind),
		Force: force,
	})
}

// HandleStatus returns the cache report.
func (h *LookupHandler) HandleStatus(ctx context.Context) (*entities.CacheReport, error) {
	return h.lookup.Report(ctx)
}

// SeedResult contains the result of seeding pending lookups.
type SeedResult struct {
	Read  int
	Added int
}

// HandleSeed queues every mention in a file for a later populate run.
// A non-empty kind overrides the kinds recorded in the file.
func (h *LookupHandler) HandleSeed(ctx context.Context, filePath, kind string) (*SeedResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	raws, err := parsers.ParseMentions(filePath, file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	byKind := make(map[entities.MentionKind][]string)
	for _, raw := range raws {
		m := raw.Mention()
		if kind != "" {
			m.Kind = entities.ParseMentionKind(kind)
		}
		byKind[m.Kind] = append(byKind[m.Kind], m.SurfaceForm)
	}

	kinds := make([]entities.MentionKind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	result := &SeedResult{Read: len(raws)}
	for _, k := range kinds {
		added, err := h.lookup.Seed(ctx, byKind[k], k)
		if err != nil {
			return nil, err
		}
		result.Added += added
	}
	return result, nil
}

// HandlePopulate runs the cascade for pending queries.
func (h *LookupHandler) HandlePopulate(ctx context.Context, opts services.PopulateOptions) (*services.PopulateResult, error) {
	return h.lookup.Populate(ctx, opts)
}

// PromoteRequest selects one cached result to turn into an entity.
type PromoteRequest struct {
	Provider string
	Query    string
	Index    int
	Type     string
}

// HandlePromote creates an entity from a cached provider result.
func (h *LookupHandler) HandlePromote(ctx context.Context, req PromoteRequest) (*entities.Entity, error) {
	if h.entityService == nil {
		return nil, fmt.Errorf("promotion is not available")
	}
	typ, err := entities.ParseEntityType(req.Type)
	if err != nil {
		return nil, err
	}

	cached, err := h.lookup.CachedEntries(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	for i := range cached {
		if cached[i].Provider == req.Provider {
			return h.entityService.PromoteCacheHit(ctx, &cached[i], req.Index, typ)
		}
	}
	return nil, fmt.Errorf("%w: no %s cache entry for %q", entities.ErrNotFound, req.Provider, req.Query)
}
