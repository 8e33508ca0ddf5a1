package downstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisEmailSender enqueues notification emails onto the Redis delivery
// queue. The email worker drains the queue and speaks SMTP, keeping slow
// mail servers out of the status-transition path.
type RedisEmailSender struct {
	rdb *redis.Client
}

// NewRedisEmailSender creates the queue-backed email sender.
func NewRedisEmailSender(rdb *redis.Client) *RedisEmailSender {
	return &RedisEmailSender{rdb: rdb}
}

func (s *RedisEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.NotificationEmailQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}
