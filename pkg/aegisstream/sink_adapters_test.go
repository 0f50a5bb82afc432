package aegisstream

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Packet
	sink := NewCallbackSink("cb", func(batch []Packet) error {
		received = append(received, batch...)
		return nil
	})

	input := WeatherPacket{Timestamp: 42, Temperature: 3.5, Pressure: 760}
	if err := sink.WriteBatch([]Packet{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	if got, ok := received[0].(WeatherPacket); !ok || got != input {
		t.Fatalf("mismatched packet: %+v vs %+v", received[0], input)
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
	if err := sink.WriteBatch([]Packet{VectorPacket{}}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := VectorPacket{Timestamp: 7, X: 1, Y: 2, Z: 3}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]Packet{input})
	}()

	var batch []Packet
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0] != Packet(input) {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]Packet{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}
