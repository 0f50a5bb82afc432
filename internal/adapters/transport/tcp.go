package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

const DefaultReadTimeout = 5 * time.Second

// TCPDialer opens one TCP connection per Dial call.
type TCPDialer struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewTCPDialer(readTimeout time.Duration) *TCPDialer {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &TCPDialer{ReadTimeout: readTimeout, WriteTimeout: readTimeout}
}

func (d *TCPDialer) Dial(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (ports.Conn, error) {
	addr := ep.Address()
	dialer := &net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ConnectError{Addr: addr, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, &domain.ConnectError{Addr: addr, Err: fmt.Errorf("set no delay: %w", err)}
		}
	}

	return newConn(ctx, conn, d.ReadTimeout, d.WriteTimeout), nil
}

// Conn wraps a net.Conn with per-operation deadlines. A cancelled context
// closes the socket so blocked reads return promptly.
type Conn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	once     sync.Once
	closeErr error
	stop     func() bool
}

func newConn(ctx context.Context, c net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	tc := &Conn{conn: c, readTimeout: readTimeout, writeTimeout: writeTimeout}
	tc.stop = context.AfterFunc(ctx, func() { _ = tc.Close() })
	return tc
}

// WrapConn adopts an already established connection, e.g. one end of net.Pipe.
func WrapConn(ctx context.Context, c net.Conn, readTimeout time.Duration) *Conn {
	return newConn(ctx, c, readTimeout, readTimeout)
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(p)
}

func (c *Conn) ReadFull(buf []byte) error {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return err
		}
	}
	n, err := io.ReadFull(c.conn, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return &domain.TruncatedReadError{Want: len(buf), Got: n, Err: err}
}

func (c *Conn) Close() error {
	c.once.Do(func() {
		if c.stop != nil {
			c.stop()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

var (
	_ ports.Dialer = (*TCPDialer)(nil)
	_ ports.Conn   = (*Conn)(nil)
)
