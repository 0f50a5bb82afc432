package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/AegisStream/internal/adapters/queue"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

func TestRunConsumerDrainsInOrderAfterClose(t *testing.T) {
	q := queue.NewMemQueue(10)
	for i := int64(1); i <= 5; i++ {
		if err := q.Push(context.Background(), domain.VectorPacket{Timestamp: i}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	q.Close()

	sink := &mockSink{}
	obs := &mockObs{}
	if err := RunConsumer(context.Background(), q, sink, ports.Policy{MaxBatchSize: 2}, obs); err != nil {
		t.Fatalf("consumer: %v", err)
	}

	got := sink.packets()
	if len(got) != 5 {
		t.Fatalf("expected 5 packets, got %d", len(got))
	}
	for i, p := range got {
		if p.Micros() != int64(i+1) {
			t.Fatalf("packet %d out of order: %d", i, p.Micros())
		}
	}
	for _, n := range sink.batchSizes() {
		if n > 2 {
			t.Fatalf("batch of %d exceeds max batch size", n)
		}
	}
	if obs.counter(ports.MetricPacketsWritten) != 5 {
		t.Fatalf("expected written counter 5, got %v", obs.counter(ports.MetricPacketsWritten))
	}
}

func TestRunConsumerSurvivesSinkFailure(t *testing.T) {
	q := queue.NewMemQueue(10)
	_ = q.Push(context.Background(), domain.WeatherPacket{Timestamp: 1})
	_ = q.Push(context.Background(), domain.WeatherPacket{Timestamp: 2})
	q.Close()

	sink := &mockSink{failures: 1}
	obs := &mockObs{}
	if err := RunConsumer(context.Background(), q, sink, ports.Policy{MaxBatchSize: 1}, obs); err != nil {
		t.Fatalf("consumer: %v", err)
	}

	got := sink.packets()
	if len(got) != 1 || got[0].Micros() != 2 {
		t.Fatalf("expected only the second packet written, got %v", got)
	}
	if obs.counter(ports.MetricSinkWriteFailures) != 1 {
		t.Fatalf("expected one sink failure, got %v", obs.counter(ports.MetricSinkWriteFailures))
	}
	if len(obs.errs()) != 1 {
		t.Fatalf("expected sink failure to be logged")
	}
}

func TestRunConsumerStopsOnCancel(t *testing.T) {
	q := queue.NewMemQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunConsumer(ctx, q, &mockSink{}, ports.Policy{}, &mockObs{}) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancellation must not surface as error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop after cancel")
	}
}

func TestRunConsumerWritesBatchPoppedDuringCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &scriptedQueue{
		batches: [][]domain.Packet{{domain.WeatherPacket{Timestamp: 1}, domain.WeatherPacket{Timestamp: 2}}},
		onPop:   cancel,
	}

	sink := &mockSink{}
	if err := RunConsumer(ctx, q, sink, ports.Policy{MaxBatchSize: 8}, &mockObs{}); err != nil {
		t.Fatalf("consumer: %v", err)
	}
	if got := sink.packets(); len(got) != 2 {
		t.Fatalf("expected popped batch to be written, got %d packets", len(got))
	}
}

func TestRunConsumerReportsQueueFailure(t *testing.T) {
	boom := errors.New("queue broken")
	q := &scriptedQueue{err: boom}
	obs := &mockObs{}

	err := RunConsumer(context.Background(), q, &mockSink{}, ports.Policy{}, obs)
	if !errors.Is(err, boom) {
		t.Fatalf("expected queue error, got %v", err)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.critical) != 1 || obs.critical[0] != "consumer_stopped" {
		t.Fatalf("expected consumer_stopped critical log, got %v", obs.critical)
	}
}

// scriptedQueue hands out fixed batches, then err (or ctx.Err, or ErrClosed).
type scriptedQueue struct {
	batches [][]domain.Packet
	onPop   func()
	err     error
}

func (q *scriptedQueue) Push(context.Context, domain.Packet) error { return nil }

func (q *scriptedQueue) Pop(ctx context.Context) (domain.Packet, error) {
	b, err := q.PopBatch(ctx, 1)
	if err != nil {
		return nil, err
	}
	return b[0], nil
}

func (q *scriptedQueue) PopBatch(ctx context.Context, _ int) ([]domain.Packet, error) {
	if q.onPop != nil {
		q.onPop()
	}
	if len(q.batches) > 0 {
		b := q.batches[0]
		q.batches = q.batches[1:]
		return b, nil
	}
	if q.err != nil {
		return nil, q.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, domain.ErrClosed
}

func (q *scriptedQueue) Close()   {}
func (q *scriptedQueue) Len() int { return 0 }
func (q *scriptedQueue) Cap() int { return 0 }

type mockSink struct {
	mu       sync.Mutex
	failures int
	batches  [][]domain.Packet
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) WriteBatch(packets []domain.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("sink down")
	}
	m.batches = append(m.batches, append([]domain.Packet(nil), packets...))
	return nil
}

func (m *mockSink) packets() []domain.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Packet
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func (m *mockSink) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, len(b))
	}
	return out
}

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	critical []string
	counters map[string]float64
}

func (m *mockObs) LogDebug(string, ...ports.Field)       {}
func (m *mockObs) LogInfo(string, ...ports.Field)        {}
func (m *mockObs) LogWarn(string, error, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical = append(m.critical, msg)
}
func (m *mockObs) IncCounter(name string, v float64, _ ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64, ...string) {}
func (m *mockObs) SetGauge(string, float64, ...string)       {}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) errs() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}
