// Package codec decodes and encodes the fixed-size big-endian sensor frames.
// Every frame ends with a checksum byte holding the unsigned sum of all
// preceding bytes modulo 256.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ghalamif/AegisStream/internal/domain"
)

type decodeFunc func(b []byte) domain.Packet

var decoders = map[domain.Kind]decodeFunc{
	domain.KindWeather: decodeWeather,
	domain.KindVector:  decodeVector,
}

// Checksum returns the sum of b modulo 256.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Decode validates and decodes a frame of the given kind. It returns a
// *domain.ChecksumError when the trailer does not match and wraps
// domain.ErrPacketSize when len(b) is not the kind's wire size.
func Decode(kind domain.Kind, b []byte) (domain.Packet, error) {
	dec, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("decode: unknown packet kind %d", uint8(kind))
	}
	if err := Verify(kind, b); err != nil {
		return nil, err
	}
	return dec(b), nil
}

func DecodeWeather(b []byte) (domain.WeatherPacket, error) {
	p, err := Decode(domain.KindWeather, b)
	if err != nil {
		return domain.WeatherPacket{}, err
	}
	return p.(domain.WeatherPacket), nil
}

func DecodeVector(b []byte) (domain.VectorPacket, error) {
	p, err := Decode(domain.KindVector, b)
	if err != nil {
		return domain.VectorPacket{}, err
	}
	return p.(domain.VectorPacket), nil
}

// Verify checks length and checksum without decoding fields.
func Verify(kind domain.Kind, b []byte) error {
	if !kind.Valid() {
		return fmt.Errorf("verify: unknown packet kind %d", uint8(kind))
	}
	if size := kind.Size(); len(b) != size {
		return fmt.Errorf("%w: %s frame is %d bytes, got %d", domain.ErrPacketSize, kind, size, len(b))
	}
	n := len(b)
	if sum := Checksum(b[:n-1]); sum != b[n-1] {
		raw := make([]byte, n)
		copy(raw, b)
		return &domain.ChecksumError{Kind: kind, Raw: raw, Computed: sum, Trailer: b[n-1]}
	}
	return nil
}

func decodeWeather(b []byte) domain.Packet {
	return domain.WeatherPacket{
		Timestamp:   int64(binary.BigEndian.Uint64(b[0:8])),
		Temperature: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
		Pressure:    int16(binary.BigEndian.Uint16(b[12:14])),
	}
}

func decodeVector(b []byte) domain.Packet {
	return domain.VectorPacket{
		Timestamp: int64(binary.BigEndian.Uint64(b[0:8])),
		X:         int32(binary.BigEndian.Uint32(b[8:12])),
		Y:         int32(binary.BigEndian.Uint32(b[12:16])),
		Z:         int32(binary.BigEndian.Uint32(b[16:20])),
	}
}

// Encode produces the wire frame for p, checksum included.
func Encode(p domain.Packet) ([]byte, error) {
	switch v := p.(type) {
	case domain.WeatherPacket:
		b := make([]byte, domain.WeatherSize)
		binary.BigEndian.PutUint64(b[0:8], uint64(v.Timestamp))
		binary.BigEndian.PutUint32(b[8:12], math.Float32bits(v.Temperature))
		binary.BigEndian.PutUint16(b[12:14], uint16(v.Pressure))
		b[14] = Checksum(b[:14])
		return b, nil
	case domain.VectorPacket:
		b := make([]byte, domain.VectorSize)
		binary.BigEndian.PutUint64(b[0:8], uint64(v.Timestamp))
		binary.BigEndian.PutUint32(b[8:12], uint32(v.X))
		binary.BigEndian.PutUint32(b[12:16], uint32(v.Y))
		binary.BigEndian.PutUint32(b[16:20], uint32(v.Z))
		b[20] = Checksum(b[:20])
		return b, nil
	default:
		return nil, fmt.Errorf("encode: unsupported packet %T", p)
	}
}
