package ports

type Observability interface {
	LogDebug(msg string, fields ...Field)
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, err error, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	// Metric label values are positional and must match the metric definition.
	IncCounter(name string, v float64, labels ...string)
	ObserveLatency(name string, seconds float64, labels ...string)
	SetGauge(name string, v float64, labels ...string)
}

type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Metric names emitted by the stream components.
const (
	MetricPacketsDecoded    = "aegis_packets_decoded_total"
	MetricChecksumFailures  = "aegis_checksum_failures_total"
	MetricSessionReconnects = "aegis_session_reconnects_total"
	MetricSessionState      = "aegis_session_state"
	MetricQueueLength       = "aegis_queue_length"
	MetricPacketsWritten    = "aegis_packets_written_total"
	MetricSinkWriteFailures = "aegis_sink_write_failures_total"
	MetricSinkLatency       = "aegis_sink_latency_seconds"
)
