package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/AegisStream"
)

func main() {
	flow, err := aegisstream.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := aegisstream.NewChannelSink("fanout", 32)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fanoutWorker("stream", batches)
	}()

	if err := flow.Run(ctx, aegisstream.StreamOutSink(sink)); err != nil {
		log.Printf("runtime error: %v", err)
	}
	closeBatches()
	<-done
}

func fanoutWorker(name string, batches <-chan []aegisstream.Packet) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d packets at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
		for _, p := range batch {
			fmt.Printf("  %s %s\n", p.Kind(), p.Summary())
		}
	}
}
