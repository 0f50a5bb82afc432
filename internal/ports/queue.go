package ports

import (
	"context"

	"github.com/ghalamif/AegisStream/internal/domain"
)

// PacketQueue is the bounded fan-in between sessions and the consumer.
type PacketQueue interface {
	// Push blocks while the queue is full. It fails with domain.ErrClosed
	// once the queue is closed, or with ctx.Err() on cancellation.
	Push(ctx context.Context, p domain.Packet) error
	// Pop blocks while the queue is empty. After Close it drains buffered
	// packets and then returns domain.ErrClosed.
	Pop(ctx context.Context) (domain.Packet, error)
	// PopBatch blocks for the first packet and then takes up to max-1 more
	// without blocking.
	PopBatch(ctx context.Context, max int) ([]domain.Packet, error)
	Close()
	Len() int
	Cap() int
}
