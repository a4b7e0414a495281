package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup wraps a handler with a Redis SETNX guard keyed by consumer group,
// topic, partition and offset. A record seen within the TTL window is
// dropped without reaching the inner handler. A nil Redis client disables
// the guard entirely; handlers then rely on their own idempotency.
type Dedup struct {
	inner  TopicHandler
	rdb    *redis.Client
	group  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewDedup wraps inner with the duplicate guard.
func NewDedup(inner TopicHandler, rdb *redis.Client, group string, ttl time.Duration, logger *slog.Logger) *Dedup {
	return &Dedup{inner: inner, rdb: rdb, group: group, ttl: ttl, logger: logger}
}

func (d *Dedup) Handle(ctx context.Context, msg *Message) error {
	if d.rdb == nil {
		return d.inner.Handle(ctx, msg)
	}

	key := fmt.Sprintf("dedup:%s:%s:%d:%d", d.group, msg.Topic, msg.Partition, msg.Offset)
	fresh, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis being down should not stall consumption.
		d.logger.Warn("dedup check failed, processing anyway", "key", key, "error", err)
		return d.inner.Handle(ctx, msg)
	}
	if !fresh {
		d.logger.Debug("duplicate record skipped",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil
	}
	return d.inner.Handle(ctx, msg)
}
