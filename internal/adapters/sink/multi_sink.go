package sink

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// MultiSink fans a batch out to every child sink. A failing child does not
// stop the others.
type MultiSink struct {
	sinks []ports.Sink
}

func NewMultiSink(sinks ...ports.Sink) *MultiSink {
	out := make([]ports.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) WriteBatch(packets []domain.Packet) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteBatch(packets); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

var _ ports.Sink = (*MultiSink)(nil)
