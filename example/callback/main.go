package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/AegisStream/pkg/aegisstream"
)

func main() {
	flow, err := aegisstream.ConfFromConfig(aegisstream.DefaultConfig())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []aegisstream.Packet) error {
		for _, p := range batch {
			switch v := p.(type) {
			case aegisstream.WeatherPacket:
				fmt.Printf("weather ts=%d temp=%.2f press=%d\n", v.Timestamp, v.Temperature, v.Pressure)
			case aegisstream.VectorPacket:
				fmt.Printf("vector ts=%d x=%d y=%d z=%d\n", v.Timestamp, v.X, v.Y, v.Z)
			}
		}
		return nil
	}

	if err := flow.Run(ctx, aegisstream.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
