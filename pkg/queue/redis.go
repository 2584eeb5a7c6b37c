package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultKeyPrefix = "agronomy:jobs"

var enqueueScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

var dequeueScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
	return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return id
`)

// Only a leased id leaves the member set; an id that was requeued and is
// ready again stays a member.
var ackScript = redis.NewScript(`
if redis.call('ZREM', KEYS[2], ARGV[1]) == 1 then
	redis.call('SREM', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('RPUSH', KEYS[1], id)
end
return #ids
`)

// RedisQueue is a lease queue stored in Redis
type RedisQueue struct {
	client   redis.UniversalClient
	ready    string
	members  string
	inflight string
	lease    time.Duration
	now      func() time.Time
}

// NewRedisQueue creates a queue under keyPrefix. Leases last lease.
func NewRedisQueue(client redis.UniversalClient, keyPrefix string, lease time.Duration) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisQueue{
		client:   client,
		ready:    keyPrefix + ":ready",
		members:  keyPrefix + ":members",
		inflight: keyPrefix + ":inflight",
		lease:    lease,
		now:      time.Now,
	}
}

// Enqueue adds id to the ready list unless it is already a member
func (q *RedisQueue) Enqueue(ctx context.Context, id uuid.UUID) (bool, error) {
	added, err := enqueueScript.Run(ctx, q.client, []string{q.ready, q.members}, id.String()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job %s: %w", id, err)
	}
	return added == 1, nil
}

// Dequeue leases the head of the ready list
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	expires := q.now().Add(q.lease)

	raw, err := dequeueScript.Run(ctx, q.client, []string{q.ready, q.inflight}, score(expires)).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		// Drop garbage so it cannot block the queue.
		q.client.ZRem(ctx, q.inflight, raw)
		q.client.SRem(ctx, q.members, raw)
		return nil, fmt.Errorf("invalid job id in queue %q: %w", raw, err)
	}
	return &Delivery{JobID: id, LeaseExpiresAt: expires}, nil
}

// Ack removes a leased id from the queue
func (q *RedisQueue) Ack(ctx context.Context, id uuid.UUID) error {
	if err := ackScript.Run(ctx, q.client, []string{q.members, q.inflight}, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", id, err)
	}
	return nil
}

// RequeueExpired returns every lease-expired id to the ready list
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	n, err := requeueScript.Run(ctx, q.client, []string{q.ready, q.inflight}, score(q.now())).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to requeue expired jobs: %w", err)
	}
	return n, nil
}

// Depth returns the ready and in-flight counts
func (q *RedisQueue) Depth(ctx context.Context) (Depth, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	inflight := pipe.ZCard(ctx, q.inflight)
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return Depth{Ready: ready.Val(), InFlight: inflight.Val()}, nil
}

func score(t time.Time) int64 {
	return t.UnixMilli()
}
