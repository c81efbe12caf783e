package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// MentionQueue is a mock implementation of ports.MentionQueue.
type MentionQueue struct {
	mu       sync.Mutex
	Mentions []entities.Mention
	Err      error
}

// Push appends mentions.
func (m *MentionQueue) Push(_ context.Context, mentions ...entities.Mention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Mentions = append(m.Mentions, mentions...)
	return nil
}

// Pop removes the first mention.
func (m *MentionQueue) Pop(_ context.Context) (entities.Mention, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return entities.Mention{}, false, m.Err
	}
	if len(m.Mentions) == 0 {
		return entities.Mention{}, false, nil
	}
	next := m.Mentions[0]
	m.Mentions = m.Mentions[1:]
	return next, true, nil
}

// Len returns the number of queued mentions.
func (m *MentionQueue) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Mentions), m.Err
}
