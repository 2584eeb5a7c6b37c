package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process lease queue
type MemoryQueue struct {
	mu       sync.Mutex
	ready    []uuid.UUID
	members  map[uuid.UUID]struct{}
	inflight map[uuid.UUID]time.Time
	lease    time.Duration
	now      func() time.Time
}

// NewMemoryQueue creates an empty queue whose leases last lease
func NewMemoryQueue(lease time.Duration) *MemoryQueue {
	return &MemoryQueue{
		members:  make(map[uuid.UUID]struct{}),
		inflight: make(map[uuid.UUID]time.Time),
		lease:    lease,
		now:      time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.members[id]; ok {
		return false, nil
	}
	q.members[id] = struct{}{}
	q.ready = append(q.ready, id)
	return true, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil, ErrEmpty
	}
	id := q.ready[0]
	q.ready = q.ready[1:]

	expires := q.now().Add(q.lease)
	q.inflight[id] = expires
	return &Delivery{JobID: id, LeaseExpiresAt: expires}, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[id]; ok {
		delete(q.inflight, id)
		delete(q.members, id)
	}
	return nil
}

func (q *MemoryQueue) RequeueExpired(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	n := 0
	for id, expires := range q.inflight {
		if expires.After(now) {
			continue
		}
		delete(q.inflight, id)
		q.ready = append(q.ready, id)
		n++
	}
	return n, nil
}

func (q *MemoryQueue) Depth(ctx context.Context) (Depth, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Depth{Ready: int64(len(q.ready)), InFlight: int64(len(q.inflight))}, nil
}
