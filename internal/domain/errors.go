package domain

import (
	"errors"
	"fmt"
)

// Error categories. Typed errors below unwrap to these so callers can branch
// with errors.Is.
var (
	ErrConnect       = errors.New("aegisstream: connect failed")
	ErrProtocol      = errors.New("aegisstream: protocol violation")
	ErrChecksum      = errors.New("aegisstream: checksum mismatch")
	ErrTruncatedRead = errors.New("aegisstream: truncated read")
	ErrPacketSize    = errors.New("aegisstream: wrong packet size")
	ErrClosed        = errors.New("aegisstream: aggregator closed")
)

// ConnectError reports an unreachable peer or an elapsed connect timeout.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() []error { return []error{ErrConnect, e.Err} }

// ProtocolError reports a short handshake or packet read.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol: " + e.Reason
	}
	return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProtocol}
	}
	return []error{ErrProtocol, e.Err}
}

// ChecksumError carries the offending frame so it can be logged and quarantined.
type ChecksumError struct {
	Kind     Kind
	Raw      []byte
	Computed byte
	Trailer  byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s packet checksum mismatch: computed 0x%02X, trailer 0x%02X", e.Kind, e.Computed, e.Trailer)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksum }

// TruncatedReadError is returned by a transport when fewer bytes than
// requested arrived before EOF or the read deadline.
type TruncatedReadError struct {
	Want int
	Got  int
	Err  error
}

func (e *TruncatedReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("truncated read: got %d of %d bytes", e.Got, e.Want)
	}
	return fmt.Sprintf("truncated read: got %d of %d bytes: %v", e.Got, e.Want, e.Err)
}

func (e *TruncatedReadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTruncatedRead}
	}
	return []error{ErrTruncatedRead, e.Err}
}
