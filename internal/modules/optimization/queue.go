// README: Optimization job queue backed by a Redis list; at-least-once delivery.
package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"lastmile/internal/types"
)

type queueMessage struct {
	JobID string `json:"jobId"`
}

type Queue struct {
	redis *redis.Client
	key   string
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{redis: client, key: key}
}

func (q *Queue) Enqueue(ctx context.Context, jobID types.ID) error {
	body, err := json.Marshal(queueMessage{JobID: string(jobID)})
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, q.key, body).Err()
}

// Dequeue blocks up to timeout for the next job id. An empty queue or a
// malformed message reports ok=false; malformed messages are dropped,
// matching the consumer contract of ignoring unparseable deliveries.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (types.ID, bool, error) {
	vals, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(vals) != 2 {
		return "", false, nil
	}

	var msg queueMessage
	if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
		return "", false, nil
	}
	if msg.JobID == "" {
		return "", false, nil
	}
	return types.ID(msg.JobID), true, nil
}
