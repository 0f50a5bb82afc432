// Package sensorsim serves the sensor station wire protocol from memory:
// auth key + command in, a fixed-length acknowledgement out, then one encoded
// packet per poll command.
package sensorsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghalamif/AegisStream/internal/codec"
	"github.com/ghalamif/AegisStream/internal/domain"
)

type Config struct {
	Kind    domain.Kind
	AuthKey []byte
	Command []byte
	AckLen  int
	// Generate builds the n-th packet (1-based) of a connection.
	Generate func(n int64) domain.Packet
	// CorruptEvery flips the checksum of every n-th packet; 0 disables it.
	CorruptEvery int64
	// TruncateHandshake sends a short acknowledgement and hangs up.
	TruncateHandshake bool
	Logger            zerolog.Logger
}

func (c *Config) applyDefaults() {
	if len(c.AuthKey) == 0 {
		c.AuthKey = []byte("isu_pt")
	}
	if len(c.Command) == 0 {
		c.Command = []byte("get")
	}
	if c.AckLen <= 0 {
		c.AckLen = 7
	}
	if c.Generate == nil {
		c.Generate = defaultGenerator(c.Kind)
	}
}

type Server struct {
	cfg Config

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config) (*Server, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("sensorsim: invalid packet kind %d", uint8(cfg.Kind))
	}
	cfg.applyDefaults()
	return &Server{cfg: cfg, conns: make(map[net.Conn]struct{})}, nil
}

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sensorsim listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Port returns the bound TCP port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("sensorsim: Listen must be called before Serve")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		if !s.track(conn, true) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { s.track(conn, false) }()
			defer conn.Close()
			if err := s.handle(conn); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.cfg.Logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("sensorsim_conn_closed")
			}
		}()
	}
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// track reports false when c arrived after Close; such a conn is closed here.
func (s *Server) track(c net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add {
		delete(s.conns, c)
		return true
	}
	if s.closed {
		_ = c.Close()
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) handle(conn net.Conn) error {
	hello := make([]byte, len(s.cfg.AuthKey)+len(s.cfg.Command))
	if _, err := io.ReadFull(conn, hello); err != nil {
		return err
	}
	if !bytes.Equal(hello[:len(s.cfg.AuthKey)], s.cfg.AuthKey) {
		return fmt.Errorf("bad auth key %q", hello[:len(s.cfg.AuthKey)])
	}
	if !bytes.Equal(hello[len(s.cfg.AuthKey):], s.cfg.Command) {
		return fmt.Errorf("unexpected command %q", hello[len(s.cfg.AuthKey):])
	}

	ack := make([]byte, s.cfg.AckLen)
	if s.cfg.TruncateHandshake {
		_, err := conn.Write(ack[:s.cfg.AckLen/2])
		return err
	}
	if _, err := conn.Write(ack); err != nil {
		return err
	}

	cmd := make([]byte, len(s.cfg.Command))
	for n := int64(1); ; n++ {
		frame, err := codec.Encode(s.cfg.Generate(n))
		if err != nil {
			return err
		}
		if s.cfg.CorruptEvery > 0 && n%s.cfg.CorruptEvery == 0 {
			frame[len(frame)-1]++
		}
		if _, err := conn.Write(frame); err != nil {
			return err
		}

		if _, err := io.ReadFull(conn, cmd); err != nil {
			return err
		}
		if !bytes.Equal(cmd, s.cfg.Command) {
			return fmt.Errorf("unexpected command %q", cmd)
		}
	}
}

func defaultGenerator(kind domain.Kind) func(n int64) domain.Packet {
	if kind == domain.KindVector {
		return func(n int64) domain.Packet {
			return domain.VectorPacket{
				Timestamp: time.Now().UnixMicro(),
				X:         int32(n),
				Y:         int32(-n),
				Z:         int32(n * 2),
			}
		}
	}
	return func(n int64) domain.Packet {
		return domain.WeatherPacket{
			Timestamp:   time.Now().UnixMicro(),
			Temperature: float32(20 + 5*math.Sin(float64(n)/10)),
			Pressure:    int16(740 + n%40),
		}
	}
}
