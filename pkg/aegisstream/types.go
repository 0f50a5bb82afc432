package aegisstream

import (
	"github.com/ghalamif/AegisStream/internal/app/session"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// Packet is a decoded, checksum-validated reading: WeatherPacket or VectorPacket.
type Packet = domain.Packet

type (
	WeatherPacket = domain.WeatherPacket
	VectorPacket  = domain.VectorPacket
	Kind          = domain.Kind
	Endpoint      = domain.Endpoint
)

const (
	KindWeather = domain.KindWeather
	KindVector  = domain.KindVector
)

// Dialer opens the per-session connection; swap it for tests or tunnels.
type Dialer = ports.Dialer

// DialerFunc adapts a plain function to Dialer.
type DialerFunc = ports.DialerFunc

// Conn is the byte stream a Dialer hands to a session.
type Conn = ports.Conn

// PacketQueue is the bounded fan-in between the sessions and the consumer.
type PacketQueue = ports.PacketQueue

// Sink consumes batches of packets and persists them to any downstream system.
type Sink = ports.Sink

// Observability emits metrics/logs about sessions, checksum failures and sink latency.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Quarantine stores frames rejected by checksum validation.
type Quarantine = ports.Quarantine

// QuarantinedFrame is one stored corrupted frame.
type QuarantinedFrame = ports.QuarantinedFrame

type (
	QuarantineID    = ports.QuarantineID
	QuarantineStats = ports.QuarantineStats
)

// SessionState is the connection phase of one endpoint.
type SessionState = session.State

const (
	StateDisconnected   = session.StateDisconnected
	StateConnecting     = session.StateConnecting
	StateAuthenticating = session.StateAuthenticating
	StatePolling        = session.StatePolling
	StateStopped        = session.StateStopped
)

// Error sentinels for errors.Is checks.
var (
	ErrConnect       = domain.ErrConnect
	ErrProtocol      = domain.ErrProtocol
	ErrChecksum      = domain.ErrChecksum
	ErrTruncatedRead = domain.ErrTruncatedRead
	ErrClosed        = domain.ErrClosed
)
