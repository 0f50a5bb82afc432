package domain

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the two packet layouts served by the sensor station.
type Kind uint8

const (
	KindWeather Kind = iota + 1
	KindVector
)

// Wire sizes, checksum byte included.
const (
	WeatherSize = 15
	VectorSize  = 21
)

func (k Kind) String() string {
	switch k {
	case KindWeather:
		return "weather"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Size returns the fixed wire size of the kind, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case KindWeather:
		return WeatherSize
	case KindVector:
		return VectorSize
	default:
		return 0
	}
}

func (k Kind) Valid() bool { return k.Size() > 0 }

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weather":
		return KindWeather, nil
	case "vector":
		return KindVector, nil
	default:
		return 0, fmt.Errorf("unknown packet kind %q", s)
	}
}

// MarshalText lets Kind round-trip through YAML and JSON as its name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid packet kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Packet is a decoded, checksum-validated sensor reading. The set of
// implementations is closed: WeatherPacket and VectorPacket.
type Packet interface {
	Kind() Kind
	// Micros is the sensor timestamp in microseconds since the Unix epoch.
	Micros() int64
	// Summary renders the variant-specific fields, e.g. "X=1;Y=2;Z=3".
	Summary() string

	packet()
}

type WeatherPacket struct {
	Timestamp   int64   `json:"ts"`
	Temperature float32 `json:"temperature"`
	Pressure    int16   `json:"pressure"`
}

func (WeatherPacket) Kind() Kind      { return KindWeather }
func (p WeatherPacket) Micros() int64 { return p.Timestamp }
func (p WeatherPacket) Summary() string {
	return "Temp=" + formatFloat32(p.Temperature) + ";Press=" + strconv.Itoa(int(p.Pressure))
}
func (WeatherPacket) packet() {}

type VectorPacket struct {
	Timestamp int64 `json:"ts"`
	X         int32 `json:"x"`
	Y         int32 `json:"y"`
	Z         int32 `json:"z"`
}

func (VectorPacket) Kind() Kind      { return KindVector }
func (p VectorPacket) Micros() int64 { return p.Timestamp }
func (p VectorPacket) Summary() string {
	return fmt.Sprintf("X=%d;Y=%d;Z=%d", p.X, p.Y, p.Z)
}
func (VectorPacket) packet() {}

// Time converts the packet timestamp to a time.Time in UTC.
func Time(p Packet) time.Time {
	return time.UnixMicro(p.Micros()).UTC()
}

// formatFloat32 keeps a trailing ".0" on integral values so 25 prints as 25.0.
func formatFloat32(f float32) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(v, 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Endpoint describes one polled sensor port. It is immutable once a session
// has been built from it.
type Endpoint struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Kind Kind   `yaml:"kind"`
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) PacketSize() int { return e.Kind.Size() }

// Label is the identifier used in logs and metric labels.
func (e Endpoint) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Kind.String() + ":" + strconv.Itoa(e.Port)
}
