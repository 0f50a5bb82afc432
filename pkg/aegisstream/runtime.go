package aegisstream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/AegisStream/internal/adapters/observability"
	"github.com/ghalamif/AegisStream/internal/adapters/quarantine"
	"github.com/ghalamif/AegisStream/internal/adapters/queue"
	"github.com/ghalamif/AegisStream/internal/adapters/sink"
	"github.com/ghalamif/AegisStream/internal/adapters/transport"
	"github.com/ghalamif/AegisStream/internal/app/pipeline"
	"github.com/ghalamif/AegisStream/internal/app/session"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	dialer        Dialer
	sink          Sink
	queue         PacketQueue
	observability Observability
	quarantine    Quarantine
}

// WithDialer replaces the TCP dialer, e.g. with an in-memory pipe or a tunnel.
func WithDialer(d Dialer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.dialer = d
	}
}

// WithSink injects a custom sink so packets can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithQueue injects a custom aggregator implementation.
func WithQueue(q PacketQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithQuarantine stores corrupted frames in q instead of the configured directory.
func WithQuarantine(q Quarantine) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.quarantine = q
	}
}

// Runtime wires two (or more) sessions → aggregator → consumer → sink and
// exposes simple lifecycle hooks for embedding the stream inside any Go service.
type Runtime struct {
	cfg        *Config
	obs        ports.Observability
	registry   *prometheus.Registry
	dialer     ports.Dialer
	queue      ports.PacketQueue
	sink       ports.Sink
	quarantine ports.Quarantine
	sessions   []*session.Session

	// closers are the adapters the runtime created itself.
	closers []io.Closer

	mu          sync.Mutex
	metricsSrv  *http.Server
	metricsAddr net.Addr
}

// NewRuntime bootstraps the default adapters (TCP dialer, in-memory aggregator,
// file + console + optional Timescale sinks, Prometheus/zerolog observability,
// file quarantine). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = rt.closeOwned()
		}
	}()

	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		rt.obs = observability.NewPromObs(rt.registry, logger)
	}

	rt.dialer = overrides.dialer
	if rt.dialer == nil {
		rt.dialer = transport.NewTCPDialer(cfg.Sensor.ReadTimeout)
	}

	rt.queue = overrides.queue
	if rt.queue == nil {
		rt.queue = queue.NewMemQueue(cfg.Policy.QueueCapacity)
	}

	rt.quarantine = overrides.quarantine
	if rt.quarantine == nil && cfg.Quarantine.IsEnabled() {
		fq, err := quarantine.NewFileQuarantine(cfg.Quarantine.Dir)
		if err != nil {
			return nil, err
		}
		rt.quarantine = fq
		rt.closers = append(rt.closers, fq)
	}

	rt.sink = overrides.sink
	if rt.sink == nil {
		snk, err := rt.defaultSink()
		if err != nil {
			return nil, err
		}
		rt.sink = snk
	}

	for _, sc := range cfg.Sessions() {
		label := sc.Endpoint.Label()
		s, err := session.New(sc, rt.dialer, rt.queue, rt.obs,
			session.WithQuarantine(rt.quarantine),
			session.WithStateHook(func(prev, cur session.State) {
				rt.obs.LogDebug("session_state",
					ports.F("endpoint", label),
					ports.F("from", prev.String()),
					ports.F("to", cur.String()))
			}),
		)
		if err != nil {
			return nil, err
		}
		rt.sessions = append(rt.sessions, s)
	}

	ok = true
	return rt, nil
}

func (r *Runtime) defaultSink() (ports.Sink, error) {
	sinks := []ports.Sink{sink.NewFileSink(r.cfg.Output.FileConfig, time.Local)}
	if r.cfg.Output.ConsoleEnabled() {
		sinks = append(sinks, sink.NewConsoleSink(os.Stdout, time.Local))
	}
	if r.cfg.Timescale.ConnString != "" {
		db, err := sql.Open("postgres", r.cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewTimescaleSink(db, r.cfg.Timescale.Table))
	}

	multi := sink.NewMultiSink(sinks...)
	r.closers = append(r.closers, multi)
	return multi, nil
}

// Stream runs the sessions and the consumer until ctx is cancelled, then
// drains the aggregator. The aggregator is closed on return, so Stream runs
// at most once per Runtime.
func (r *Runtime) Stream(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	return pipeline.RunStream(ctx, r.sessions, r.queue, r.sink, r.cfg.Policy, r.obs)
}

// Run starts the metrics server, streams until ctx is cancelled and then
// shuts everything down.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.startMetrics(); err != nil {
		return err
	}
	streamErr := r.Stream(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(streamErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server and closes the sinks and quarantine the
// runtime opened.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	srv := r.metricsSrv
	r.metricsSrv = nil
	r.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	errs = append(errs, r.closeOwned())
	return errors.Join(errs...)
}

func (r *Runtime) closeOwned() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// States reports the current phase of every session keyed by endpoint name.
func (r *Runtime) States() map[string]SessionState {
	out := make(map[string]SessionState, len(r.sessions))
	for _, s := range r.sessions {
		out[s.Endpoint().Name] = s.State()
	}
	return out
}

// MetricsAddr returns the bound metrics address once Run has started it.
func (r *Runtime) MetricsAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metricsAddr
}

// Handler serves /metrics and /healthz.
func (r *Runtime) Handler() http.Handler {
	mux := http.NewServeMux()
	if r.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (r *Runtime) startMetrics() error {
	if r.cfg.Metrics.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.mu.Lock()
	r.metricsSrv = srv
	r.metricsAddr = ln.Addr()
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
	r.obs.LogInfo("metrics_listening", ports.F("addr", ln.Addr().String()))
	return nil
}
