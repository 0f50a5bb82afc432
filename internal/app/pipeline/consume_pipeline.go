package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// RunConsumer drains q into sink in arrival order. It returns nil once q is
// closed and empty or ctx is cancelled. A batch already popped is written even
// if ctx was cancelled meanwhile. Sink failures are logged and counted;
// the failed batch is not retried.
func RunConsumer(ctx context.Context, q ports.PacketQueue, sink ports.Sink, pol ports.Policy, obs ports.Observability) error {
	max := pol.MaxBatchSize
	if max <= 0 {
		max = 1
	}
	name := sink.Name()

	for {
		batch, err := q.PopBatch(ctx, max)
		obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
		if err != nil {
			if errors.Is(err, domain.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			obs.LogCritical("consumer_stopped", err, ports.F("sink", name))
			return err
		}

		start := time.Now()
		if err := sink.WriteBatch(batch); err != nil {
			obs.IncCounter(ports.MetricSinkWriteFailures, 1, name)
			obs.LogError("sink_write_failed", err, ports.F("sink", name), ports.F("batch", len(batch)))
			continue
		}
		obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds(), name)
		obs.IncCounter(ports.MetricPacketsWritten, float64(len(batch)), name)
	}
}
