package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
)

func setupQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, "test:mentions"), mr
}

func TestConnect_PlainAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), mr.Addr())

	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr)

	assert.Error(t, err)
}

func TestQueue_PushPop(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx,
		entities.Mention{SurfaceForm: "Tim Cook", Kind: entities.MentionPerson,
			Context: entities.SourceContext{SourceID: "a1", Symbols: []string{"AAPL"}}},
		entities.Mention{SurfaceForm: "$NVDA", Kind: entities.MentionSymbol},
	))
	require.NoError(t, q.Push(ctx))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tim Cook", m.SurfaceForm)
	assert.Equal(t, entities.MentionPerson, m.Kind)
	assert.Equal(t, []string{"AAPL"}, m.Context.Symbols)

	m, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "$NVDA", m.SurfaceForm)

	_, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_DeadLetter(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	_, err := mr.Lpush("test:mentions", "{not json")
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, entities.Mention{SurfaceForm: "Apple"}))

	m, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apple", m.SurfaceForm)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dead)
}

func TestQueue_BlockingPop(t *testing.T) {
	q, _ := setupQueue(t)
	q.PopTimeout = time.Second
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, entities.Mention{SurfaceForm: "Apple"}))

	m, ok, err := q.Pop(ctx)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apple", m.SurfaceForm)
}

func TestQueue_ServerGone(t *testing.T) {
	q, mr := setupQueue(t)
	mr.Close()

	_, _, err := q.Pop(context.Background())
	assert.Error(t, err)

	_, err = q.Len(context.Background())
	assert.Error(t, err)
}
