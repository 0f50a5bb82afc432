package queue

import (
	"context"
	"sync"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

const DefaultCapacity = 100

// MemQueue is a bounded in-memory queue that preserves FIFO ordering. Push
// blocks while full and Pop blocks while empty.
type MemQueue struct {
	mu     sync.RWMutex
	data   chan domain.Packet
	done   chan struct{}
	closed bool
	once   sync.Once
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemQueue{
		data: make(chan domain.Packet, capacity),
		done: make(chan struct{}),
	}
}

func (q *MemQueue) Push(ctx context.Context, p domain.Packet) error {
	// The read lock keeps Close from closing data under a blocked sender;
	// done is closed first so blocked senders release it.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrClosed
	}

	select {
	case <-q.done:
		return domain.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.data <- p:
		return nil
	}
}

func (q *MemQueue) Pop(ctx context.Context) (domain.Packet, error) {
	select {
	case p, ok := <-q.data:
		if !ok {
			return nil, domain.ErrClosed
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemQueue) PopBatch(ctx context.Context, max int) ([]domain.Packet, error) {
	first, err := q.Pop(ctx)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = cap(q.data)
	}

	out := make([]domain.Packet, 1, max)
	out[0] = first
	for len(out) < max {
		select {
		case p, ok := <-q.data:
			if !ok {
				return out, nil
			}
			out = append(out, p)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Close is terminal and idempotent. Buffered packets remain poppable.
func (q *MemQueue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.data)
		q.mu.Unlock()
	})
}

func (q *MemQueue) Len() int { return len(q.data) }

func (q *MemQueue) Cap() int { return cap(q.data) }

var _ ports.PacketQueue = (*MemQueue)(nil)
