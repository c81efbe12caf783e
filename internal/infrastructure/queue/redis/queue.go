// Package redis provides a mention queue backed by a Redis list, so
// several grounding processes can drain the same backlog.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
)

var _ ports.MentionQueue = (*Queue)(nil)

// DeadLetterSuffix is appended to the queue key for entries that could
// not be decoded.
const DeadLetterSuffix = ":failed"

// Queue pushes with LPUSH and pops with RPOP, giving FIFO order.
type Queue struct {
	client *goredis.Client
	key    string
	// PopTimeout makes Pop block with BRPOP for up to this long before
	// reporting the queue drained. Zero pops without blocking.
	PopTimeout time.Duration
}

// Connect opens a client from a redis:// URL, falling back to treating
// the value as a plain host:port address.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		opt = &goredis.Options{Addr: redisURL}
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewQueue creates a queue on the given list key.
func NewQueue(client *goredis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Push appends mentions.
func (q *Queue) Push(ctx context.Context, mentions ...entities.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	values := make([]any, len(mentions))
	for i, m := range mentions {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding mention: %w", err)
		}
		values[i] = data
	}
	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("pushing mentions: %w", err)
	}
	return nil
}

// Pop removes the oldest mention. Entries that fail to decode are moved
// to the dead letter list and skipped.
func (q *Queue) Pop(ctx context.Context) (entities.Mention, bool, error) {
	for {
		raw, err := q.pop(ctx)
		if errors.Is(err, goredis.Nil) {
			return entities.Mention{}, false, nil
		}
		if err != nil {
			return entities.Mention{}, false, fmt.Errorf("popping mention: %w", err)
		}

		var m entities.Mention
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			if derr := q.client.LPush(ctx, q.key+DeadLetterSuffix, raw).Err(); derr != nil {
				return entities.Mention{}, false, fmt.Errorf("dead lettering mention: %w", derr)
			}
			continue
		}
		return m, true, nil
	}
}

func (q *Queue) pop(ctx context.Context) (string, error) {
	if q.PopTimeout <= 0 {
		return q.client.RPop(ctx, q.key).Result()
	}
	result, err := q.client.BRPop(ctx, q.PopTimeout, q.key).Result()
	if err != nil {
		return "", err
	}
	return result[1], nil
}

// Len returns the number of queued mentions.
func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}
	return int(n), nil
}

// DeadLetters returns the number of entries moved aside as undecodable.
func (q *Queue) DeadLetters(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key+DeadLetterSuffix).Result()
	if err != nil {
		return 0, fmt.Errorf("reading dead letter length: %w", err)
	}
	return int(n), nil
}
