// Package memory provides an in-process mention queue.
package memory

import (
	"context"
	"sync"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
)

var _ ports.MentionQueue = (*Queue)(nil)

// Queue is a FIFO of mentions guarded by a mutex.
type Queue struct {
	mu    sync.Mutex
	items []entities.Mention
}

// NewQueue creates a queue holding the given mentions.
func NewQueue(mentions ...entities.Mention) *Queue {
	q := &Queue{}
	q.items = append(q.items, mentions...)
	return q
}

// Push appends mentions.
func (q *Queue) Push(ctx context.Context, mentions ...entities.Mention) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, mentions...)
	return nil
}

// Pop removes the oldest mention.
func (q *Queue) Pop(ctx context.Context) (entities.Mention, bool, error) {
	if err := ctx.Err(); err != nil {
		return entities.Mention{}, false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return entities.Mention{}, false, nil
	}
	next := q.items[0]
	q.items[0] = entities.Mention{}
	q.items = q.items[1:]
	return next, true, nil
}

// Len returns the number of queued mentions.
func (q *Queue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
