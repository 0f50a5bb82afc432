package aegisstream

import (
	"context"
	"errors"
	"fmt"
)

var errNilFlow = errors.New("aegisstream: nil flow")

// Flow builds a Runtime in two steps. StreamIN decides how sessions reach the
// stations; StreamOUT decides where decoded packets end up and returns the
// Runtime. Options are recorded in call order, so a later override wins.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

type (
	FlowOption      func(*Flow)
	StreamInOption  func(*Flow)
	StreamOutOption func(*Flow)
)

// Conf reads the YAML config at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	return ConfFromConfig(cfg, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("aegisstream: flow needs a config")
	}
	f := &Flow{cfg: cfg}
	apply(f, opts)
	return f, nil
}

// Config exposes the config the Runtime will be built from. Edits made before
// StreamOUT take effect.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f != nil {
		f.use(opts...)
	}
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f != nil {
		apply(f, opts)
	}
	return f
}

func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, errNilFlow
	}
	apply(f, opts)
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and blocks until ctx is cancelled and it has shut down.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return FlowOption(using(opts...))
}

// StreamInHost points every endpoint at host instead of sensor.host.
func StreamInHost(host string) StreamInOption {
	if host == "" {
		return nil
	}
	return func(f *Flow) { f.cfg.Sensor.Host = host }
}

func StreamInDialer(d Dialer) StreamInOption {
	if d == nil {
		return nil
	}
	return StreamInOption(using(WithDialer(d)))
}

func StreamInQueue(q PacketQueue) StreamInOption {
	if q == nil {
		return nil
	}
	return StreamInOption(using(WithQueue(q)))
}

// StreamInQuarantine keeps frames that fail the checksum in q.
func StreamInQuarantine(q Quarantine) StreamInOption {
	if q == nil {
		return nil
	}
	return StreamInOption(using(WithQuarantine(q)))
}

func StreamInObservability(obs Observability) StreamInOption {
	if obs == nil {
		return nil
	}
	return StreamInOption(using(WithObservability(obs)))
}

func StreamOutSink(s Sink) StreamOutOption {
	if s == nil {
		return nil
	}
	return StreamOutOption(using(WithSink(s)))
}

func StreamOutObservability(obs Observability) StreamOutOption {
	if obs == nil {
		return nil
	}
	return StreamOutOption(using(WithObservability(obs)))
}

// StreamOutCallback hands every batch to fn instead of the configured sinks.
func StreamOutCallback(name string, fn PacketBatchFunc) StreamOutOption {
	return StreamOutOption(using(WithSink(NewCallbackSink(name, fn))))
}

func using(opts ...RuntimeOption) func(*Flow) {
	return func(f *Flow) { f.use(opts...) }
}

func apply[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) use(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
