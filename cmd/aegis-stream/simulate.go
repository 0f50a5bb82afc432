package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghalamif/AegisStream/internal/adapters/sensorsim"
)

func newSimulateCommand(load configLoader) *cobra.Command {
	var (
		listenHost        string
		corruptEvery      int64
		truncateHandshake bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve fake sensor endpoints on the configured ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := cliLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				errs []error
			)
			for _, ep := range cfg.Sensor.Endpoints {
				srv, err := sensorsim.New(sensorsim.Config{
					Kind:              ep.Kind,
					AuthKey:           []byte(cfg.Sensor.AuthKey),
					Command:           []byte(cfg.Sensor.Command),
					AckLen:            cfg.Sensor.HandshakeLen,
					CorruptEvery:      corruptEvery,
					TruncateHandshake: truncateHandshake,
					Logger:            log.With().Str("endpoint", ep.Name).Logger(),
				})
				if err != nil {
					return err
				}
				addr := net.JoinHostPort(listenHost, strconv.Itoa(ep.Port))
				if err := srv.Listen(addr); err != nil {
					stop()
					wg.Wait()
					return err
				}
				log.Info().Str("endpoint", ep.Name).Str("addr", addr).Str("kind", ep.Kind.String()).Msg("simulator_listening")

				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := srv.Serve(ctx); err != nil {
						mu.Lock()
						errs = append(errs, fmt.Errorf("%s: %w", addr, err))
						mu.Unlock()
						stop()
					}
				}()
			}

			wg.Wait()
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&listenHost, "listen", "127.0.0.1", "Interface to bind the simulated endpoints on")
	cmd.Flags().Int64Var(&corruptEvery, "corrupt-every", 0, "Corrupt the checksum of every n-th packet (0 disables)")
	cmd.Flags().BoolVar(&truncateHandshake, "truncate-handshake", false, "Send a short acknowledgement and hang up")
	return cmd
}
