package aegisstream

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("aegisstream: channel sink closed")

// PacketBatchFunc is invoked with ordered batches drained from the aggregator.
type PacketBatchFunc func([]Packet) error

// NewCallbackSink adapts a PacketBatchFunc into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn PacketBatchFunc) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Packet, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Packet, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   PacketBatchFunc
}

func (s *callbackSink) WriteBatch(packets []Packet) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(packets) == 0 {
		return nil
	}
	return s.fn(packets)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Packet
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

func (s *channelSink) WriteBatch(packets []Packet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(packets) == 0 {
		return nil
	}

	batch := append([]Packet(nil), packets...)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
