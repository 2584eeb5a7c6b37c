package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/config"
)

// ErrEmpty is returned by Dequeue when no id is ready
var ErrEmpty = errors.New("queue is empty")

// Delivery is one dequeued job id and the time its lease runs out
type Delivery struct {
	JobID          uuid.UUID
	LeaseExpiresAt time.Time
}

// Depth reports how many ids are waiting and how many are leased
type Depth struct {
	Ready    int64
	InFlight int64
}

// Queue is a lease queue of job ids
type Queue interface {
	// Enqueue adds id unless it is already ready or in flight. It reports
	// whether the id was added.
	Enqueue(ctx context.Context, id uuid.UUID) (bool, error)
	// Dequeue leases the oldest ready id. Returns ErrEmpty when none is ready.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack releases a leased id. Acking an id that is not leased is a no-op.
	Ack(ctx context.Context, id uuid.UUID) error
	// RequeueExpired moves every lease-expired id back to ready
	RequeueExpired(ctx context.Context) (int, error)
	Depth(ctx context.Context) (Depth, error)
}

// New builds the backend selected by cfg. client may be nil for the memory
// backend.
func New(cfg config.QueueConfig, client redis.UniversalClient) (Queue, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryQueue(cfg.Lease), nil
	case "redis", "":
		if client == nil {
			return nil, fmt.Errorf("redis queue requires a redis client")
		}
		return NewRedisQueue(client, cfg.KeyPrefix, cfg.Lease), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.Backend)
	}
}
