package observability

import (
	"encoding/hex"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ghalamif/AegisStream/internal/ports"
)

type PromObs struct {
	log      zerolog.Logger
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	histos   map[string]*prometheus.HistogramVec
}

// NewPromObs registers the stream metrics on reg (prometheus.DefaultRegisterer
// when nil) and logs through logger.
func NewPromObs(reg prometheus.Registerer, logger zerolog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decoded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricPacketsDecoded,
		Help: "Packets that passed checksum validation and were queued.",
	}, []string{"endpoint", "kind"})
	checksum := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricChecksumFailures,
		Help: "Frames discarded because the trailing checksum did not match.",
	}, []string{"endpoint"})
	reconnects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricSessionReconnects,
		Help: "Connection attempts abandoned and retried after backoff.",
	}, []string{"endpoint"})
	written := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricPacketsWritten,
		Help: "Packets handed to the sink successfully.",
	}, []string{"sink"})
	sinkFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricSinkWriteFailures,
		Help: "Batches the sink failed to write.",
	}, []string{"sink"})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: ports.MetricSessionState,
		Help: "Current session state (0=disconnected 1=connecting 2=authenticating 3=polling 4=stopped).",
	}, []string{"endpoint"})
	queueLen := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Packets buffered in the aggregator.",
	}, nil)
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Time spent writing one batch to the sink.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"sink"})

	reg.MustRegister(decoded, checksum, reconnects, written, sinkFailures, state, queueLen, latency)

	return &PromObs{
		log: logger,
		counters: map[string]*prometheus.CounterVec{
			ports.MetricPacketsDecoded:    decoded,
			ports.MetricChecksumFailures:  checksum,
			ports.MetricSessionReconnects: reconnects,
			ports.MetricPacketsWritten:    written,
			ports.MetricSinkWriteFailures: sinkFailures,
		},
		gauges: map[string]*prometheus.GaugeVec{
			ports.MetricSessionState: state,
			ports.MetricQueueLength:  queueLen,
		},
		histos: map[string]*prometheus.HistogramVec{
			ports.MetricSinkLatency: latency,
		},
	}
}

// Nop discards logs and registers metrics on a private registry.
func Nop() *PromObs {
	return NewPromObs(prometheus.NewRegistry(), zerolog.Nop())
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	withFields(p.log.Debug(), fields).Msg(msg)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.log.Info(), fields).Msg(msg)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Warn().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Error().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(p.log.WithLevel(zerolog.FatalLevel).Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64, labels ...string) {
	if c, ok := p.counters[name]; ok {
		if m, err := c.GetMetricWithLabelValues(labels...); err == nil {
			m.Add(v)
		}
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64, labels ...string) {
	if h, ok := p.histos[name]; ok {
		if m, err := h.GetMetricWithLabelValues(labels...); err == nil {
			m.Observe(seconds)
		}
	}
}

func (p *PromObs) SetGauge(name string, v float64, labels ...string) {
	if g, ok := p.gauges[name]; ok {
		if m, err := g.GetMetricWithLabelValues(labels...); err == nil {
			m.Set(v)
		}
	}
}

func withFields(e *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case int64:
			e = e.Int64(f.Key, v)
		case uint64:
			e = e.Uint64(f.Key, v)
		case float64:
			e = e.Float64(f.Key, v)
		case bool:
			e = e.Bool(f.Key, v)
		case []byte:
			e = e.Str(f.Key, hex.EncodeToString(v))
		case error:
			e = e.AnErr(f.Key, v)
		case interface{ String() string }:
			e = e.Stringer(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}

var _ ports.Observability = (*PromObs)(nil)
