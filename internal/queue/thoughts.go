package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Thought is one queued item for the agent's decision loop.
type Thought struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"` // "api", "reflection", "chat"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const stream = "memos:thoughts"

// ThoughtQueue buffers inbound thoughts in a Redis Stream so producers never
// block on the agent's mutex. Single consumer; ordering follows the stream.
type ThoughtQueue struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewThoughtQueue connects to Redis and verifies it.
func NewThoughtQueue(redisURL string, logger *zap.Logger) (*ThoughtQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &ThoughtQueue{rdb: rdb, logger: logger}, nil
}

// Publish appends a thought to the stream.
func (q *ThoughtQueue) Publish(ctx context.Context, t *Thought) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish thought: %w", err)
	}

	q.logger.Debug("thought queued",
		zap.String("source", t.Source),
		zap.String("text", t.Text))
	return nil
}

// Consume reads thoughts from the stream, starting with the newest.
// Returns a channel that emits thoughts. Cancel the context to stop.
func (q *ThoughtQueue) Consume(ctx context.Context) <-chan *Thought {
	ch := make(chan *Thought, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := q.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var t Thought
					if json.Unmarshal([]byte(data), &t) != nil {
						continue
					}
					select {
					case ch <- &t:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (q *ThoughtQueue) Close() error {
	return q.rdb.Close()
}
