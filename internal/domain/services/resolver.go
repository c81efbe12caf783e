package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// ResolverConfig holds per-tier confidence thresholds.
type ResolverConfig struct {
	SymbolThreshold float64
	AliasThreshold  float64
	PersonThreshold float64
	// MinRelevance drops candidates below it from every tier.
	MinRelevance float64
	// AmbiguityMargin is how far the best confident candidate must lead
	// the runner-up to be accepted alone.
	AmbiguityMargin float64
	// FullTextMaxConfidence caps full-text candidates below the confident tiers.
	FullTextMaxConfidence float64
	CandidateLimit        int
}

// DefaultResolverConfig returns the default thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SymbolThreshold:       0.95,
		AliasThreshold:        0.9,
		PersonThreshold:       0.8,
		MinRelevance:          0.3,
		AmbiguityMargin:       0.03,
		FullTextMaxConfidence: 0.75,
		CandidateLimit:        10,
	}
}

func (c ResolverConfig) threshold(t entities.Tier) float64 {
	switch t {
	case entities.TierSymbol:
		return c.SymbolThreshold
	case entities.TierAlias:
		return c.AliasThreshold
	case entities.TierPerson:
		return c.PersonThreshold
	}
	// Full-text candidates are never confident.
	return 2
}

// Resolver maps mentions onto entities by running matchers in tier order
// and stopping at the first tier with a confident candidate.
type Resolver struct {
	matchers []Matcher
	config   ResolverConfig
	logger   *slog.Logger
}

// NewResolver creates a resolver with the standard tiers: symbol, alias,
// person, then full-text over the given searchers.
func NewResolver(store ports.EntityStore, config ResolverConfig, logger *slog.Logger, searchers ...ports.CandidateSearcher) *Resolver {
	matchers := []Matcher{
		NewSymbolMatcher(store),
		NewAliasMatcher(store),
		NewPersonMatcher(store, config.CandidateLimit),
	}
	if len(searchers) > 0 {
		matchers = append(matchers, NewCandidateSearchMatcher(store, config.CandidateLimit, config.FullTextMaxConfidence, searchers...))
	}
	return NewResolverWithMatchers(config, logger, matchers...)
}

// NewResolverWithMatchers creates a resolver over an explicit tier list.
func NewResolverWithMatchers(config ResolverConfig, logger *slog.Logger, matchers ...Matcher) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{matchers: matchers, config: config, logger: logger}
}

// Resolve returns the resolution of one mention. Storage failures are
// returned as errors; an unresolved mention is a normal result.
func (r *Resolver) Resolve(ctx context.Context, mention entities.Mention) (*entities.Resolution, error) {
	if strings.TrimSpace(mention.SurfaceForm) == "" {
		return nil, &entities.ValidationError{Field: "surface_form", Message: "missing required field: surface_form"}
	}
	if mention.Kind == "" {
		mention.Kind = entities.MentionOther
	}
	pm := prepareMention(mention)

	var pool []entities.Candidate
	for _, m := range r.matchers {
		cands, err := m.Match(ctx, pm)
		if err != nil {
			return nil, err
		}
		cands = r.filter(pm, cands)
		if len(cands) == 0 {
			continue
		}

		threshold := r.config.threshold(m.Tier())
		var confident []entities.Candidate
		for _, c := range cands {
			if c.Confidence >= threshold {
				confident = append(confident, c)
			}
		}
		if len(confident) > 0 {
			return r.decide(pm, m.Tier(), confident), nil
		}
		pool = append(pool, cands...)
	}

	pool = dedupeCandidates(pool)
	rankCandidates(pool)
	if r.config.CandidateLimit > 0 && len(pool) > r.config.CandidateLimit {
		pool = pool[:r.config.CandidateLimit]
	}

	res := &entities.Resolution{Mention: pm.Mention, Status: entities.StatusUnresolved}
	if len(pool) > 0 {
		res.Status = entities.StatusCandidates
		res.Candidates = pool
		res.Confidence = pool[0].Confidence
		res.Tier = pool[0].Tier
	}
	r.logger.Debug("mention not confidently resolved",
		"surface", pm.SurfaceForm, "kind", pm.Kind, "status", res.Status, "candidates", len(pool))
	return res, nil
}

// decide turns the confident candidates of one tier into a resolution.
func (r *Resolver) decide(pm *preparedMention, tier entities.Tier, confident []entities.Candidate) *entities.Resolution {
	confident = dedupeCandidates(confident)
	rankCandidates(confident)

	res := &entities.Resolution{
		Mention:    pm.Mention,
		Tier:       tier,
		Confidence: confident[0].Confidence,
		Candidates: confident,
	}
	if len(confident) == 1 || confident[0].Confidence-confident[1].Confidence >= r.config.AmbiguityMargin-1e-9 {
		res.Status = entities.StatusResolved
		res.EntityID = confident[0].Entity.ID
	} else {
		res.Status = entities.StatusAmbiguous
	}

	r.logger.Debug("mention resolved",
		"surface", pm.SurfaceForm, "tier", tier, "status", res.Status, "entity_id", res.EntityID)
	return res
}

// filter drops weak candidates and, when the mention kind implies an
// entity type, candidates of other types if any of that type remain.
func (r *Resolver) filter(pm *preparedMention, cands []entities.Candidate) []entities.Candidate {
	kept := cands[:0]
	for _, c := range cands {
		if c.Entity != nil && c.Confidence >= r.config.MinRelevance {
			kept = append(kept, c)
		}
	}

	want, ok := pm.Kind.EntityType()
	if !ok {
		return kept
	}
	var typed []entities.Candidate
	for _, c := range kept {
		if c.Entity.Type == want {
			typed = append(typed, c)
		}
	}
	if len(typed) > 0 {
		return typed
	}
	return kept
}

// dedupeCandidates keeps the best candidate per entity.
func dedupeCandidates(cands []entities.Candidate) []entities.Candidate {
	idx := make(map[string]int, len(cands))
	out := make([]entities.Candidate, 0, len(cands))
	for _, c := range cands {
		if i, ok := idx[c.Entity.ID]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		idx[c.Entity.ID] = len(out)
		out = append(out, c)
	}
	return out
}

// rankCandidates orders by confidence, then tier, then alias priority.
func rankCandidates(cands []entities.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Alias == nil || b.Alias == nil {
			return false
		}
		if a.Alias.Type != b.Alias.Type {
			return a.Alias.Type.Priority() < b.Alias.Type.Priority()
		}
		if a.Alias.Confidence != b.Alias.Confidence {
			return a.Alias.Confidence > b.Alias.Confidence
		}
		return a.Alias.IsPrimary && !b.Alias.IsPrimary
	})
}
