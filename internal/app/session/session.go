// Package session drives one sensor endpoint through
// connect → authenticate → poll, reconnecting after a fixed delay whenever
// the connection fails.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ghalamif/AegisStream/internal/codec"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRetryDelay     = 2 * time.Second
	DefaultHandshakeLen   = 7
	DefaultAuthKey        = "isu_pt"
	DefaultCommand        = "get"
)

type Config struct {
	Endpoint       domain.Endpoint
	AuthKey        []byte
	Command        []byte
	HandshakeLen   int
	ConnectTimeout time.Duration
	// RetryDelay is fixed: there is no growth and no jitter between attempts.
	RetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.AuthKey) == 0 {
		c.AuthKey = []byte(DefaultAuthKey)
	}
	if len(c.Command) == 0 {
		c.Command = []byte(DefaultCommand)
	}
	if c.HandshakeLen <= 0 {
		c.HandshakeLen = DefaultHandshakeLen
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

type Option func(*Session)

// WithQuarantine stores every frame that fails checksum validation.
func WithQuarantine(q ports.Quarantine) Option {
	return func(s *Session) { s.quarantine = q }
}

// WithStateHook is called synchronously on every state transition.
func WithStateHook(fn func(prev, cur State)) Option {
	return func(s *Session) { s.onState = fn }
}

type Session struct {
	cfg        Config
	label      string
	dialer     ports.Dialer
	queue      ports.PacketQueue
	obs        ports.Observability
	quarantine ports.Quarantine
	onState    func(prev, cur State)

	state atomic.Int32
}

func New(cfg Config, dialer ports.Dialer, queue ports.PacketQueue, obs ports.Observability, opts ...Option) (*Session, error) {
	if !cfg.Endpoint.Kind.Valid() {
		return nil, fmt.Errorf("session: endpoint %s has no valid packet kind", cfg.Endpoint.Address())
	}
	if dialer == nil || queue == nil || obs == nil {
		return nil, errors.New("session: dialer, queue and observability are required")
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:    cfg,
		label:  cfg.Endpoint.Label(),
		dialer: dialer,
		queue:  queue,
		obs:    obs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Endpoint() domain.Endpoint { return s.cfg.Endpoint }

// Run loops until ctx is cancelled or the queue is closed. Cancellation
// returns nil; a closed queue returns domain.ErrClosed. Every other failure is
// logged and retried after RetryDelay.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.connectAndPoll(ctx)
		if ctx.Err() != nil {
			s.obs.LogInfo("session_stopped", ports.F("endpoint", s.label))
			return nil
		}
		if errors.Is(err, domain.ErrClosed) {
			s.obs.LogInfo("session_queue_closed", ports.F("endpoint", s.label))
			return domain.ErrClosed
		}

		s.setState(StateDisconnected)
		s.obs.IncCounter(ports.MetricSessionReconnects, 1, s.label)
		s.obs.LogWarn("session_connection_error", err,
			ports.F("endpoint", s.label),
			ports.F("port", s.cfg.Endpoint.Port),
			ports.F("retry_in", s.cfg.RetryDelay))

		if !sleep(ctx, s.cfg.RetryDelay) {
			s.obs.LogInfo("session_stopped", ports.F("endpoint", s.label))
			return nil
		}
	}
}

// connectAndPoll runs one connection attempt. The connection is closed on
// every return path.
func (s *Session) connectAndPoll(ctx context.Context) error {
	ep := s.cfg.Endpoint

	s.setState(StateConnecting)
	conn, err := s.dialer.Dial(ctx, ep, s.cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.setState(StateAuthenticating)
	if err := s.handshake(conn); err != nil {
		return err
	}

	s.setState(StatePolling)
	s.obs.LogInfo("session_polling", ports.F("endpoint", s.label), ports.F("addr", ep.Address()))

	buf := make([]byte, ep.PacketSize())
	kind := ep.Kind.String()
	for first := true; ; first = false {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the command sent with the auth key already requested the first packet
		if !first {
			if _, err := conn.Write(s.cfg.Command); err != nil {
				return fmt.Errorf("write poll command: %w", err)
			}
		}
		if err := conn.ReadFull(buf); err != nil {
			return readError("incomplete packet", err)
		}

		p, err := codec.Decode(ep.Kind, buf)
		if err != nil {
			s.reject(err)
			return err
		}
		if err := s.queue.Push(ctx, p); err != nil {
			return err
		}
		s.obs.IncCounter(ports.MetricPacketsDecoded, 1, s.label, kind)
	}
}

func (s *Session) handshake(conn ports.Conn) error {
	hello := make([]byte, 0, len(s.cfg.AuthKey)+len(s.cfg.Command))
	hello = append(hello, s.cfg.AuthKey...)
	hello = append(hello, s.cfg.Command...)
	if _, err := conn.Write(hello); err != nil {
		return fmt.Errorf("write auth: %w", err)
	}

	ack := make([]byte, s.cfg.HandshakeLen)
	if err := conn.ReadFull(ack); err != nil {
		return readError("auth response incomplete", err)
	}
	return nil
}

func (s *Session) reject(err error) {
	var ce *domain.ChecksumError
	if !errors.As(err, &ce) {
		s.obs.LogError("packet_decode_failed", err, ports.F("endpoint", s.label))
		return
	}

	s.obs.IncCounter(ports.MetricChecksumFailures, 1, s.label)
	s.obs.LogError("packet_checksum_mismatch", err,
		ports.F("endpoint", s.label),
		ports.F("port", s.cfg.Endpoint.Port),
		ports.F("data", HexDump(ce.Raw)))

	if s.quarantine == nil {
		return
	}
	if _, qerr := s.quarantine.Append(s.cfg.Endpoint, ce.Raw); qerr != nil {
		s.obs.LogError("quarantine_append_failed", qerr, ports.F("endpoint", s.label))
	}
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	s.obs.SetGauge(ports.MetricSessionState, float64(next), s.label)
	if s.onState != nil && prev != next {
		s.onState(prev, next)
	}
}

// readError maps a short read onto a ProtocolError and passes other I/O
// failures through.
func readError(reason string, err error) error {
	if errors.Is(err, domain.ErrTruncatedRead) {
		return &domain.ProtocolError{Reason: reason, Err: err}
	}
	return fmt.Errorf("%s: %w", reason, err)
}

// HexDump renders b as space separated upper-case hex pairs.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
