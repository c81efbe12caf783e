package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
)

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(entities.Mention{SurfaceForm: "Apple"})
	require.NoError(t, q.Push(ctx,
		entities.Mention{SurfaceForm: "Tim Cook", Kind: entities.MentionPerson},
		entities.Mention{SurfaceForm: "$NVDA", Kind: entities.MentionSymbol},
	))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var got []string
	for {
		m, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, m.SurfaceForm)
	}
	assert.Equal(t, []string{"Apple", "Tim Cook", "$NVDA"}, got)

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewQueue(entities.Mention{SurfaceForm: "Apple"})

	_, _, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, q.Push(ctx, entities.Mention{}), context.Canceled)
}

func TestQueue_ConcurrentPop(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	for range 200 {
		require.NoError(t, q.Push(ctx, entities.Mention{SurfaceForm: "x"}))
	}

	var mu sync.Mutex
	popped := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok, err := q.Pop(ctx)
				if err != nil || !ok {
					return
				}
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, popped)
}
