package ports

import (
	"context"
	"io"
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
)

// Conn is an exclusively owned byte stream to one sensor endpoint.
type Conn interface {
	io.Writer
	// ReadFull fills buf completely or returns a *domain.TruncatedReadError.
	ReadFull(buf []byte) error
	// Close is idempotent.
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (Conn, error)
}

// DialerFunc adapts a plain function to Dialer.
type DialerFunc func(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (Conn, error) {
	return f(ctx, ep, timeout)
}
