package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/AegisStream/internal/adapters/queue"
	"github.com/ghalamif/AegisStream/internal/codec"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

var weatherEP = domain.Endpoint{Name: "weather", Host: "sensor", Port: 5123, Kind: domain.KindWeather}

func TestSessionPollsAndDropsConnectionOnChecksumFailure(t *testing.T) {
	good1 := mustEncode(t, domain.WeatherPacket{Timestamp: 1, Temperature: 1, Pressure: 1})
	good2 := mustEncode(t, domain.WeatherPacket{Timestamp: 2, Temperature: 2, Pressure: 2})
	bad := make([]byte, domain.WeatherSize)
	bad[14] = 123

	dialer := &scriptDialer{scripts: [][]byte{concat(ack(), good1, good2, bad)}}
	q := queue.NewMemQueue(10)
	obs := &recObs{}
	quar := &memQuarantine{}

	s := newTestSession(t, dialer, q, obs, WithQuarantine(quar))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	waitFor(t, func() bool { return quar.len() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}

	for want := int64(1); want <= 2; want++ {
		p, err := q.Pop(context.Background())
		if err != nil || p.Micros() != want {
			t.Fatalf("expected packet %d, got %v %v", want, p, err)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("corrupt packet must not be queued, len=%d", q.Len())
	}

	conn := dialer.conn(0)
	if got := conn.written(); got != "isu_ptgetgetget" {
		t.Fatalf("unexpected client writes %q", got)
	}
	if !conn.isClosed() {
		t.Fatalf("connection must be closed after checksum failure")
	}
	if !bytes.Equal(quar.frames[0], bad) {
		t.Fatalf("quarantined frame differs from wire bytes")
	}
	if obs.counter(ports.MetricChecksumFailures) != 1 || obs.counter(ports.MetricPacketsDecoded) != 2 {
		t.Fatalf("unexpected counters: %+v", obs.counters)
	}
	if !obs.hasError(func(err error) bool { return errors.Is(err, domain.ErrChecksum) }) {
		t.Fatalf("expected checksum error to be logged")
	}
	if s.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", s.State())
	}
}

func TestSessionShortHandshakeRetries(t *testing.T) {
	dialer := &scriptDialer{scripts: [][]byte{{0, 0}, {0, 0}}}
	q := queue.NewMemQueue(10)
	obs := &recObs{}

	var (
		mu     sync.Mutex
		states []State
	)
	s := newTestSession(t, dialer, q, obs, WithStateHook(func(_, cur State) {
		mu.Lock()
		states = append(states, cur)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	waitFor(t, func() bool { return dialer.callCount() >= 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}

	var pe *domain.ProtocolError
	if !obs.hasWarn(func(err error) bool { return errors.As(err, &pe) && pe.Reason == "auth response incomplete" }) {
		t.Fatalf("expected auth ProtocolError to be logged, got %v", obs.warnErrs())
	}
	for i := 0; i < 2; i++ {
		if !dialer.conn(i).isClosed() {
			t.Fatalf("connection %d leaked", i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("no packet expected, got %d", q.Len())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateAuthenticating, StateDisconnected, StateConnecting}
	for i, st := range want {
		if i >= len(states) || states[i] != st {
			t.Fatalf("unexpected transitions %v", states)
		}
	}
}

func TestSessionShortPacketIsProtocolError(t *testing.T) {
	dialer := &scriptDialer{scripts: [][]byte{concat(ack(), []byte{1, 2, 3, 4, 5})}}
	q := queue.NewMemQueue(10)
	obs := &recObs{}
	s := newTestSession(t, dialer, q, obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	waitFor(t, func() bool { return obs.counter(ports.MetricSessionReconnects) >= 1 })
	cancel()
	<-done

	var pe *domain.ProtocolError
	if !obs.hasWarn(func(err error) bool { return errors.As(err, &pe) && pe.Reason == "incomplete packet" }) {
		t.Fatalf("expected incomplete packet error, got %v", obs.warnErrs())
	}
	if !errors.Is(pe, domain.ErrTruncatedRead) {
		t.Fatalf("protocol error should wrap the truncated read")
	}
	if q.Len() != 0 {
		t.Fatalf("partial packet must not be queued")
	}
}

func TestSessionConnectErrorRetriedWithFixedDelay(t *testing.T) {
	dialer := &scriptDialer{}
	obs := &recObs{}
	s := newTestSession(t, dialer, queue.NewMemQueue(1), obs)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	done := runAsync(ctx, s)
	waitFor(t, func() bool { return dialer.callCount() >= 4 })
	elapsed := time.Since(start)
	cancel()
	<-done

	if elapsed < 3*testRetryDelay {
		t.Fatalf("retries happened faster than the fixed delay: %s", elapsed)
	}
	if !obs.hasWarn(func(err error) bool { return errors.Is(err, domain.ErrConnect) }) {
		t.Fatalf("expected connect errors to be logged")
	}
}

func TestSessionCancelDuringBackoff(t *testing.T) {
	dialer := &scriptDialer{}
	q := queue.NewMemQueue(1)
	obs := &recObs{}

	disconnected := make(chan struct{}, 1)
	s, err := New(Config{Endpoint: weatherEP, RetryDelay: time.Hour}, dialer, q, obs,
		WithStateHook(func(_, cur State) {
			if cur == StateDisconnected {
				select {
				case disconnected <- struct{}{}:
				default:
				}
			}
		}))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	<-disconnected
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancellation must not surface an error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("session did not stop during backoff")
	}
	if dialer.callCount() != 1 {
		t.Fatalf("expected a single dial, got %d", dialer.callCount())
	}
	if q.Len() != 0 {
		t.Fatalf("nothing should be pushed after cancellation")
	}
}

func TestSessionCancelWhileBlockedOnFullQueue(t *testing.T) {
	frames := [][]byte{ack()}
	for i := int64(1); i <= 3; i++ {
		frames = append(frames, mustEncode(t, domain.WeatherPacket{Timestamp: i}))
	}
	dialer := &scriptDialer{scripts: [][]byte{concat(frames...)}}
	q := queue.NewMemQueue(1)
	s := newTestSession(t, dialer, q, &recObs{})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	waitFor(t, func() bool { return q.Len() == 1 && dialer.conn(0).written() == "isu_ptgetget" })
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
	if !dialer.conn(0).isClosed() {
		t.Fatalf("connection leaked on cancellation")
	}
}

func TestSessionStopsWhenQueueClosed(t *testing.T) {
	dialer := &scriptDialer{scripts: [][]byte{concat(ack(), mustEncode(t, domain.WeatherPacket{Timestamp: 9}))}}
	q := queue.NewMemQueue(1)
	q.Close()

	s := newTestSession(t, dialer, q, &recObs{})
	err := s.Run(context.Background())
	if !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if !dialer.conn(0).isClosed() {
		t.Fatalf("connection leaked")
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New(Config{Endpoint: domain.Endpoint{Port: 1}}, &scriptDialer{}, queue.NewMemQueue(1), &recObs{}); err == nil {
		t.Fatalf("expected error for endpoint without kind")
	}
	if _, err := New(Config{Endpoint: weatherEP}, nil, queue.NewMemQueue(1), &recObs{}); err == nil {
		t.Fatalf("expected error for nil dialer")
	}

	s, err := New(Config{Endpoint: weatherEP}, &scriptDialer{}, queue.NewMemQueue(1), &recObs{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.cfg.RetryDelay != DefaultRetryDelay || s.cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Fatalf("defaults not applied: %+v", s.cfg)
	}
	if string(s.cfg.AuthKey) != "isu_pt" || string(s.cfg.Command) != "get" || s.cfg.HandshakeLen != 7 {
		t.Fatalf("protocol defaults not applied: %+v", s.cfg)
	}
}

func TestHexDump(t *testing.T) {
	if got := HexDump([]byte{0x00, 0xAB, 0x7F}); got != "00 AB 7F" {
		t.Fatalf("unexpected hex dump %q", got)
	}
}

// helpers

const testRetryDelay = 10 * time.Millisecond

func newTestSession(t *testing.T, d ports.Dialer, q ports.PacketQueue, obs ports.Observability, opts ...Option) *Session {
	t.Helper()
	s, err := New(Config{Endpoint: weatherEP, RetryDelay: testRetryDelay}, d, q, obs, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func runAsync(ctx context.Context, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func mustEncode(t *testing.T, p domain.Packet) []byte {
	t.Helper()
	b, err := codec.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func ack() []byte { return make([]byte, DefaultHandshakeLen) }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type scriptDialer struct {
	mu      sync.Mutex
	scripts [][]byte
	conns   []*fakeConn
	calls   int
}

func (d *scriptDialer) Dial(ctx context.Context, ep domain.Endpoint, _ time.Duration) (ports.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.scripts) == 0 {
		return nil, &domain.ConnectError{Addr: ep.Address(), Err: errors.New("connection refused")}
	}
	c := &fakeConn{r: bytes.NewReader(d.scripts[0])}
	d.scripts = d.scripts[1:]
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *scriptDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *scriptDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeConn struct {
	mu     sync.Mutex
	r      *bytes.Reader
	w      bytes.Buffer
	closed atomic.Bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

func (c *fakeConn) ReadFull(buf []byte) error {
	n, err := io.ReadFull(c.r, buf)
	if err != nil {
		return &domain.TruncatedReadError{Want: len(buf), Got: n}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.String()
}

func (c *fakeConn) isClosed() bool { return c.closed.Load() }

type memQuarantine struct {
	mu     sync.Mutex
	frames [][]byte
}

func (m *memQuarantine) Append(_ domain.Endpoint, raw []byte) (ports.QuarantineID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, raw)
	return ports.QuarantineID(len(m.frames)), nil
}

func (m *memQuarantine) Iterate(ports.QuarantineID, func(ports.QuarantinedFrame) error) error {
	return nil
}
func (m *memQuarantine) Stats() ports.QuarantineStats { return ports.QuarantineStats{} }
func (m *memQuarantine) Close() error                 { return nil }

func (m *memQuarantine) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

type recObs struct {
	mu       sync.Mutex
	warns    []error
	errs     []error
	counters map[string]float64
}

func (o *recObs) LogDebug(string, ...ports.Field) {}
func (o *recObs) LogInfo(string, ...ports.Field)  {}
func (o *recObs) LogWarn(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.warns = append(o.warns, err)
}
func (o *recObs) LogError(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}
func (o *recObs) LogCritical(string, error, ...ports.Field) {}
func (o *recObs) IncCounter(name string, v float64, _ ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counters == nil {
		o.counters = make(map[string]float64)
	}
	o.counters[name] += v
}
func (o *recObs) ObserveLatency(string, float64, ...string) {}
func (o *recObs) SetGauge(string, float64, ...string)       {}

func (o *recObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *recObs) hasWarn(match func(error) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, err := range o.warns {
		if match(err) {
			return true
		}
	}
	return false
}

func (o *recObs) hasError(match func(error) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, err := range o.errs {
		if match(err) {
			return true
		}
	}
	return false
}

func (o *recObs) warnErrs() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.warns...)
}
