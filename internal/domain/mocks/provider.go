package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// ProviderResponse is one scripted reply of a mock Provider.
type ProviderResponse struct {
	Results []entities.SearchResult
	Err     error
}

// Provider is a mock implementation of ports.Provider. Responses are
// consumed in order and the last one repeats.
type Provider struct {
	mu sync.Mutex

	ProviderName string
	Responses    []ProviderResponse
	// Block, when set, is received from before answering.
	Block chan struct{}

	// Call tracking
	Calls   int
	Queries []string
}

// NewProvider creates a mock provider that always returns results.
func NewProvider(name string, results ...entities.SearchResult) *Provider {
	return &Provider{
		ProviderName: name,
		Responses:    []ProviderResponse{{Results: results}},
	}
}

// NewFailingProvider creates a mock provider that always fails with err.
func NewFailingProvider(name string, err error) *Provider {
	return &Provider{
		ProviderName: name,
		Responses:    []ProviderResponse{{Err: err}},
	}
}

// Name returns the provider name.
func (m *Provider) Name() string {
	return m.ProviderName
}

// Search returns the next scripted response.
func (m *Provider) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, &entities.ProviderError{Provider: m.ProviderName, Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	idx := m.Calls
	m.Calls++
	if len(m.Responses) == 0 {
		return nil, nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	resp := m.Responses[idx]
	return resp.Results, resp.Err
}

// CallCount returns the number of Search calls.
func (m *Provider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
