package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/ghalamif/AegisStream/internal/app/session"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// RunStream runs every session and a single consumer until ctx is cancelled.
// Once all sessions have stopped the queue is closed, and the consumer drains
// whatever is still buffered before RunStream returns.
func RunStream(ctx context.Context, sessions []*session.Session, q ports.PacketQueue, sink ports.Sink, pol ports.Policy, obs ports.Observability) error {
	if len(sessions) == 0 {
		return errors.New("pipeline: no sessions configured")
	}

	consumed := make(chan error, 1)
	go func() {
		consumed <- RunConsumer(context.WithoutCancel(ctx), q, sink, pol, obs)
	}()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			err := s.Run(ctx)
			if err == nil || errors.Is(err, domain.ErrClosed) {
				return
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(s)
	}

	obs.LogInfo("stream_started", ports.F("sessions", len(sessions)), ports.F("queue_capacity", q.Cap()))
	wg.Wait()
	q.Close()
	errs = append(errs, <-consumed)
	obs.LogInfo("stream_stopped")

	return errors.Join(errs...)
}
