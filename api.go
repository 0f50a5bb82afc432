package aegisstream

import (
	base "github.com/ghalamif/AegisStream/pkg/aegisstream"
)

// Re-exported errors for convenience.
var (
	ErrConnect           = base.ErrConnect
	ErrProtocol          = base.ErrProtocol
	ErrChecksum          = base.ErrChecksum
	ErrTruncatedRead     = base.ErrTruncatedRead
	ErrClosed            = base.ErrClosed
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/AegisStream directly.
type (
	Config           = base.Config
	SensorConfig     = base.SensorConfig
	EndpointConfig   = base.EndpointConfig
	Policy           = base.Policy
	OutputConfig     = base.OutputConfig
	TimescaleConfig  = base.TimescaleConfig
	MetricsConfig    = base.MetricsConfig
	QuarantineConfig = base.QuarantineConfig
	LogConfig        = base.LogConfig
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	Packet           = base.Packet
	WeatherPacket    = base.WeatherPacket
	VectorPacket     = base.VectorPacket
	Kind             = base.Kind
	Endpoint         = base.Endpoint
	PacketBatchFunc  = base.PacketBatchFunc
	Dialer           = base.Dialer
	DialerFunc       = base.DialerFunc
	Conn             = base.Conn
	Sink             = base.Sink
	PacketQueue      = base.PacketQueue
	Observability    = base.Observability
	Field            = base.Field
	Quarantine       = base.Quarantine
	QuarantinedFrame = base.QuarantinedFrame
	QuarantineID     = base.QuarantineID
	QuarantineStats  = base.QuarantineStats
	SessionState     = base.SessionState
)

const (
	KindWeather = base.KindWeather
	KindVector  = base.KindVector

	StateDisconnected   = base.StateDisconnected
	StateConnecting     = base.StateConnecting
	StateAuthenticating = base.StateAuthenticating
	StatePolling        = base.StatePolling
	StateStopped        = base.StateStopped
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInHost(host string) StreamInOption {
	return base.StreamInHost(host)
}

func StreamInDialer(d Dialer) StreamInOption {
	return base.StreamInDialer(d)
}

func StreamInQueue(q PacketQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInQuarantine(q Quarantine) StreamInOption {
	return base.StreamInQuarantine(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn PacketBatchFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithDialer(d Dialer) RuntimeOption {
	return base.WithDialer(d)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithQueue(q PacketQueue) RuntimeOption {
	return base.WithQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithQuarantine(q Quarantine) RuntimeOption {
	return base.WithQuarantine(q)
}

// Sink adapters.
func NewCallbackSink(name string, fn PacketBatchFunc) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Packet, func()) {
	return base.NewChannelSink(name, buffer)
}

// Quarantine inspection.
func OpenQuarantine(dir string) (Quarantine, error) {
	return base.OpenQuarantine(dir)
}

func HexDump(b []byte) string {
	return base.HexDump(b)
}
