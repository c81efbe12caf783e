package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/normalize"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// GroundingOptions controls when mentions escalate to the lookup cascade.
type GroundingOptions struct {
	// Escalate sends unresolved mentions to the lookup cascade.
	Escalate bool
	// EscalateCandidates also escalates mentions that only produced
	// below-threshold candidates.
	EscalateCandidates bool
	// Force bypasses cached ok and empty lookup entries.
	Force bool
}

// GroundingOutcome is the result of grounding one mention.
type GroundingOutcome struct {
	Mention    entities.Mention        `json:"mention"`
	Resolution *entities.Resolution    `json:"resolution,omitempty"`
	Lookup     *entities.LookupOutcome `json:"lookup,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Found reports whether the mention was resolved locally or by a provider.
func (o *GroundingOutcome) Found() bool {
	if o.Resolution != nil && o.Resolution.Status == entities.StatusResolved {
		return true
	}
	return o.Lookup != nil && o.Lookup.Status == entities.LookupFound
}

// KindStats counts grounding results for one mention kind.
type KindStats struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
}

// GroundingStats summarizes a grounding run.
type GroundingStats struct {
	Total     int                                 `json:"total"`
	Resolved  int                                 `json:"resolved"`
	Ambiguous int                                 `json:"ambiguous"`
	Escalated int                                 `json:"escalated"`
	LookedUp  int                                 `json:"looked_up"`
	Failed    int                                 `json:"failed"`
	ByKind    map[entities.MentionKind]*KindStats `json:"by_kind"`
}

func newGroundingStats() *GroundingStats {
	return &GroundingStats{ByKind: make(map[entities.MentionKind]*KindStats)}
}

func (st *GroundingStats) add(o *GroundingOutcome) {
	st.Total++
	if o.Error != "" {
		st.Failed++
	}
	if o.Resolution != nil {
		switch o.Resolution.Status {
		case entities.StatusResolved:
			st.Resolved++
		case entities.StatusAmbiguous:
			st.Ambiguous++
		}
	}
	if o.Lookup != nil {
		st.Escalated++
		if o.Lookup.Status == entities.LookupFound {
			st.LookedUp++
		}
	}

	ks, ok := st.ByKind[o.Mention.Kind]
	if !ok {
		ks = &KindStats{}
		st.ByKind[o.Mention.Kind] = ks
	}
	if o.Found() {
		ks.Found++
	} else {
		ks.NotFound++
	}
}

// GroundingService resolves mentions locally and escalates the ones the
// entity store cannot answer to the lookup cascade.
type GroundingService struct {
	resolver *Resolver
	lookup   *LookupService
	opts     GroundingOptions
	logger   *slog.Logger
}

// NewGroundingService creates a new GroundingService. lookup may be nil.
func NewGroundingService(resolver *Resolver, lookup *LookupService, opts GroundingOptions, logger *slog.Logger) *GroundingService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &GroundingService{resolver: resolver, lookup: lookup, opts: opts, logger: logger}
}

// Ground resolves one mention and escalates it when needed. Invalid
// mentions are reported in the outcome; storage failures are returned.
func (s *GroundingService) Ground(ctx context.Context, m entities.Mention) (*GroundingOutcome, error) {
	out := &GroundingOutcome{Mention: m}

	res, err := s.resolver.Resolve(ctx, m)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			out.Error = err.Error()
			return out, nil
		}
		return nil, fmt.Errorf("resolving %q: %w", m.SurfaceForm, err)
	}
	out.Resolution = res

	if !s.shouldEscalate(res) {
		return out, nil
	}

	kind := m.Kind
	if kind == entities.MentionSymbol || normalize.LooksLikeTicker(m.SurfaceForm) {
		kind = entities.MentionSymbol
	}
	query := m.SurfaceForm
	if kind == entities.MentionSymbol {
		query = normalize.Symbol(m.SurfaceForm)
	}

	lookup, err := s.lookup.Lookup(ctx, LookupRequest{Query: query, Kind: kind, Force: s.opts.Force})
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", m.SurfaceForm, err)
	}
	out.Lookup = lookup
	return out, nil
}

func (s *GroundingService) shouldEscalate(res *entities.Resolution) bool {
	if s.lookup == nil || !s.opts.Escalate {
		return false
	}
	switch res.Status {
	case entities.StatusUnresolved:
		return true
	case entities.StatusCandidates:
		return s.opts.EscalateCandidates
	}
	return false
}

// GroundBatch grounds mentions on a bounded worker pool and returns the
// outcomes in input order.
func (s *GroundingService) GroundBatch(ctx context.Context, mentions []entities.Mention, workers int) ([]GroundingOutcome, *GroundingStats, error) {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]GroundingOutcome, len(mentions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range mentions {
		g.Go(func() error {
			o, err := s.Ground(gctx, m)
			if err != nil {
				return err
			}
			outcomes[i] = *o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	stats := newGroundingStats()
	for i := range outcomes {
		stats.add(&outcomes[i])
	}
	return outcomes, stats, nil
}

// Run drains the queue with the given number of workers. Each outcome is
// passed to sink, which may be nil and is never called concurrently.
func (s *GroundingService) Run(ctx context.Context, queue ports.MentionQueue, workers int, sink func(GroundingOutcome)) (*GroundingStats, error) {
	if workers < 1 {
		workers = 1
	}
	stats := newGroundingStats()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				m, ok, err := queue.Pop(gctx)
				if err != nil {
					return fmt.Errorf("popping mention: %w", err)
				}
				if !ok {
					return nil
				}

				o, err := s.Ground(gctx, m)
				if err != nil {
					return err
				}

				mu.Lock()
				stats.add(o)
				if sink != nil {
					sink(*o)
				}
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	s.logger.Info("grounding run finished",
		"total", stats.Total, "resolved", stats.Resolved, "escalated", stats.Escalated, "looked_up", stats.LookedUp)
	return stats, nil
}
