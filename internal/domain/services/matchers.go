package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/normalize"
	"github.com/ersonp/newsground/internal/domain/ports"
)

// preparedMention is a mention with its derived keys computed once.
type preparedMention struct {
	entities.Mention
	Normalized string
	SymbolKey  string
	Ticker     bool
	Person     normalize.Keys
	Symbols    map[string]bool
}

func prepareMention(m entities.Mention) *preparedMention {
	surface := strings.TrimSpace(m.SurfaceForm)
	p := &preparedMention{
		Mention:    m,
		Normalized: normalize.Normalize(surface),
		SymbolKey:  normalize.Symbol(surface),
		Ticker:     normalize.LooksLikeTicker(surface),
		Symbols:    make(map[string]bool, len(m.Context.Symbols)),
	}
	p.SurfaceForm = surface
	if m.Kind == entities.MentionPerson {
		p.Person = normalize.PersonKeys(surface)
	}
	for _, sym := range m.Context.Symbols {
		if k := normalize.Symbol(sym); k != "" {
			p.Symbols[k] = true
		}
	}
	return p
}

// Matcher is one resolution tier.
type Matcher interface {
	Tier() entities.Tier
	Match(ctx context.Context, m *preparedMention) ([]entities.Candidate, error)
}

// SymbolMatcher looks ticker-shaped mentions up against symbol aliases.
type SymbolMatcher struct {
	store ports.EntityStore
}

// NewSymbolMatcher creates the exact symbol tier.
func NewSymbolMatcher(store ports.EntityStore) *SymbolMatcher {
	return &SymbolMatcher{store: store}
}

// Tier returns TierSymbol.
func (m *SymbolMatcher) Tier() entities.Tier { return entities.TierSymbol }

// Match returns entities holding the mention as a symbol alias.
func (m *SymbolMatcher) Match(ctx context.Context, pm *preparedMention) ([]entities.Candidate, error) {
	if !pm.Ticker && pm.Kind != entities.MentionSymbol {
		return nil, nil
	}
	if pm.SymbolKey == "" {
		return nil, nil
	}

	hits, err := m.store.FindAliases(ctx, entities.AliasFilter{
		Normalized: pm.SymbolKey,
		Types:      []entities.AliasType{entities.AliasSymbol, entities.AliasTickerOld},
	})
	if err != nil {
		return nil, fmt.Errorf("matching symbol: %w", err)
	}

	candidates := make([]entities.Candidate, 0, len(hits))
	for i := range hits {
		h := hits[i]
		conf, reason := 0.96, "symbol alias"
		switch {
		case h.Alias.Type == entities.AliasTickerOld:
			conf, reason = 0.85, "former ticker"
		case h.Alias.IsPrimary:
			conf, reason = 1.0, "primary symbol alias"
		}
		candidates = append(candidates, entities.Candidate{
			Entity:     h.Entity,
			Alias:      &h.Alias,
			Confidence: conf,
			Tier:       entities.TierSymbol,
			Reason:     reason,
		})
	}
	return candidates, nil
}

// AliasMatcher matches the normalized mention against every alias type.
type AliasMatcher struct {
	store ports.EntityStore
}

// NewAliasMatcher creates the exact alias tier.
func NewAliasMatcher(store ports.EntityStore) *AliasMatcher {
	return &AliasMatcher{store: store}
}

// Tier returns TierAlias.
func (m *AliasMatcher) Tier() entities.Tier { return entities.TierAlias }

// Match returns exact normalized alias hits. Confidence decreases with
// alias type priority so long names outrank symbols and nicknames.
func (m *AliasMatcher) Match(ctx context.Context, pm *preparedMention) ([]entities.Candidate, error) {
	if pm.Normalized == "" {
		return nil, nil
	}
	hits, err := m.store.FindAliases(ctx, entities.AliasFilter{Normalized: pm.Normalized})
	if err != nil {
		return nil, fmt.Errorf("matching alias: %w", err)
	}
	SortAliasHits(hits)

	candidates := make([]entities.Candidate, 0, len(hits))
	for i := range hits {
		h := hits[i]
		conf := 1.0 - 0.01*float64(h.Alias.Type.Priority())
		candidates = append(candidates, entities.Candidate{
			Entity:     h.Entity,
			Alias:      &h.Alias,
			Confidence: conf,
			Tier:       entities.TierAlias,
			Reason:     string(h.Alias.Type) + " alias",
		})
	}
	return candidates, nil
}

// PersonMatcher matches person mentions on family name plus given
// initial or prefix.
type PersonMatcher struct {
	store ports.EntityStore
	limit int
	now   func() time.Time
}

// NewPersonMatcher creates the fuzzy person tier.
func NewPersonMatcher(store ports.EntityStore, limit int) *PersonMatcher {
	return &PersonMatcher{store: store, limit: limit, now: time.Now}
}

// Tier returns TierPerson.
func (m *PersonMatcher) Tier() entities.Tier { return entities.TierPerson }

// Match scores persons sharing the family name. A family-only mention is
// too weak to match here and is left to the later tiers.
func (m *PersonMatcher) Match(ctx context.Context, pm *preparedMention) ([]entities.Candidate, error) {
	if pm.Kind != entities.MentionPerson || pm.Person.FamilyNorm == "" || pm.Person.FamilyOnly() {
		return nil, nil
	}
	keys := pm.Person

	persons, err := m.store.FindPersons(ctx, entities.PersonQuery{
		FamilyNorm:   keys.FamilyNorm,
		GivenInitial: keys.GivenInitial,
		GivenPrefix3: keys.GivenPrefix3,
		Limit:        m.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("matching person: %w", err)
	}

	candidates := make([]entities.Candidate, 0, len(persons))
	for _, p := range persons {
		if p.Keys == nil {
			continue
		}
		conf, reason := scorePerson(personKeys(keys), *p.Keys)
		if conf == 0 {
			continue
		}

		bonus, affReason, err := m.affiliationBonus(ctx, p.ID, pm.Symbols)
		if err != nil {
			return nil, err
		}
		if bonus > 0 {
			conf += bonus
			reason += ", " + affReason
		}
		if conf > 1 {
			conf = 1
		}

		candidates = append(candidates, entities.Candidate{
			Entity:     p,
			Confidence: conf,
			Tier:       entities.TierPerson,
			Reason:     reason,
		})
	}
	return candidates, nil
}

// scorePerson ranks exact given name over initial over prefix.
func scorePerson(mention, person entities.PersonKeys) (float64, string) {
	var conf float64
	var reason string
	switch {
	case !isInitial(mention.GivenNorm) && mention.GivenNorm == person.GivenNorm:
		conf, reason = 0.95, "exact given name"
	case isInitial(mention.GivenNorm) && mention.GivenInitial == person.GivenInitial:
		conf, reason = 0.85, "given initial"
	case mention.GivenPrefix3 == person.GivenPrefix3:
		conf, reason = 0.8, "given prefix"
	case mention.GivenInitial == person.GivenInitial:
		conf, reason = 0.5, "given initial only"
	default:
		return 0, ""
	}

	if mention.MiddleInitials != "" && person.MiddleInitials != "" {
		if strings.HasPrefix(person.MiddleInitials, mention.MiddleInitials) {
			conf += 0.02
		} else {
			conf -= 0.15
			reason += ", middle initial mismatch"
		}
	}
	return conf, reason
}

func isInitial(given string) bool {
	return utf8.RuneCountInString(given) == 1
}

// personKeys converts derived name keys to their stored form.
func personKeys(k normalize.Keys) entities.PersonKeys {
	return entities.PersonKeys{
		GivenNorm:       k.GivenNorm,
		FamilyNorm:      k.FamilyNorm,
		GivenInitial:    k.GivenInitial,
		GivenPrefix3:    k.GivenPrefix3,
		MiddleInitials:  k.MiddleInitials,
		FullNormNoHonor: k.FullNormNoHonor,
	}
}

// affiliationBonus prefers persons affiliated with a symbol mentioned in
// the same source text, current affiliations over ended ones.
func (m *PersonMatcher) affiliationBonus(ctx context.Context, personID string, symbols map[string]bool) (float64, string, error) {
	if len(symbols) == 0 {
		return 0, "", nil
	}
	affiliated, err := m.store.FindAffiliatedSymbols(ctx, personID)
	if err != nil {
		return 0, "", fmt.Errorf("finding affiliated symbols: %w", err)
	}

	now := m.now()
	var best float64
	var reason string
	for _, a := range affiliated {
		if !symbols[a.Symbol] {
			continue
		}
		bonus, why := 0.02, "past affiliation with "+strings.ToUpper(a.Symbol)
		if a.ValidTo == nil || a.ValidTo.After(now) {
			bonus, why = 0.04, "affiliated with "+strings.ToUpper(a.Symbol)
		}
		if bonus > best {
			best, reason = bonus, why
		}
	}
	return best, reason, nil
}

// CandidateSearchMatcher is the approximate full-text tier. Its candidates
// are never confident on their own.
type CandidateSearchMatcher struct {
	store     ports.EntityStore
	searchers []ports.CandidateSearcher
	limit     int
	cap       float64
}

// NewCandidateSearchMatcher creates the full-text tier over one or more searchers.
func NewCandidateSearchMatcher(store ports.EntityStore, limit int, maxConfidence float64, searchers ...ports.CandidateSearcher) *CandidateSearchMatcher {
	return &CandidateSearchMatcher{store: store, searchers: searchers, limit: limit, cap: maxConfidence}
}

// Tier returns TierFullText.
func (m *CandidateSearchMatcher) Tier() entities.Tier { return entities.TierFullText }

// Match queries every searcher and re-ranks hits by string similarity.
func (m *CandidateSearchMatcher) Match(ctx context.Context, pm *preparedMention) ([]entities.Candidate, error) {
	query := pm.Normalized
	if pm.Kind == entities.MentionPerson && pm.Person.FullNormNoHonor != "" {
		query = pm.Person.FullNormNoHonor
	}
	if query == "" {
		return nil, nil
	}

	best := make(map[string]entities.Candidate)
	order := make([]string, 0)
	for _, searcher := range m.searchers {
		matches, err := searcher.SearchAliases(ctx, query, m.limit)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", searcher.Name(), err)
		}
		for _, match := range matches {
			conf := Similarity(query, match.Normalized, match.Score) * m.cap
			if prev, ok := best[match.EntityID]; ok && prev.Confidence >= conf {
				continue
			}
			if _, ok := best[match.EntityID]; !ok {
				order = append(order, match.EntityID)
			}
			best[match.EntityID] = entities.Candidate{
				Alias: &entities.Alias{
					ID:         match.AliasID,
					EntityID:   match.EntityID,
					Text:       match.Text,
					Normalized: match.Normalized,
				},
				Confidence: conf,
				Tier:       entities.TierFullText,
				Reason:     searcher.Name() + " match on " + match.Text,
			}
		}
	}

	candidates := make([]entities.Candidate, 0, len(order))
	for _, id := range order {
		c := best[id]
		e, err := m.store.FindEntityByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading candidate %s: %w", id, err)
		}
		if e == nil {
			continue
		}
		c.Entity = e
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Similarity blends a search engine score with edit distance and
// subsequence matching into a value in [0, 1].
func Similarity(query, candidate string, engineScore float64) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	if query == candidate {
		return 1
	}

	longest := utf8.RuneCountInString(query)
	if n := utf8.RuneCountInString(candidate); n > longest {
		longest = n
	}
	editSim := 1 - float64(levenshtein.ComputeDistance(query, candidate))/float64(longest)

	sim := editSim
	if engineScore > 0 {
		sim = 0.6*editSim + 0.4*clamp01(engineScore)
	}
	if fuzzy.MatchFold(query, candidate) || fuzzy.MatchFold(candidate, query) {
		sim += 0.1
	}
	return clamp01(sim)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
