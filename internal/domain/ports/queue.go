package ports

import (
	"context"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// MentionQueue feeds mentions to grounding workers.
type MentionQueue interface {
	// Push appends mentions to the queue.
	Push(ctx context.Context, mentions ...entities.Mention) error

	// Pop removes the next mention. It returns false when the queue is drained.
	Pop(ctx context.Context) (entities.Mention, bool, error)

	// Len returns the number of queued mentions.
	Len(ctx context.Context) (int, error)
}
