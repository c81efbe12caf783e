package mocks

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// CandidateSearcher is a mock implementation of ports.CandidateSearcher.
type CandidateSearcher struct {
	SearcherName string
	Matches      []entities.AliasMatch
	Err          error

	// Call tracking
	Calls     int
	LastQuery string
}

// Name returns the searcher name.
func (m *CandidateSearcher) Name() string {
	if m.SearcherName == "" {
		return "mock"
	}
	return m.SearcherName
}

// SearchAliases returns the configured matches.
func (m *CandidateSearcher) SearchAliases(_ context.Context, query string, limit int) ([]entities.AliasMatch, error) {
	m.Calls++
	m.LastQuery = query
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Matches) > limit {
		return m.Matches[:limit], nil
	}
	return m.Matches, nil
}
