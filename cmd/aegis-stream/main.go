package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ghalamif/AegisStream"
	"github.com/ghalamif/AegisStream/internal/adapters/observability"
)

const defaultConfigPath = "./data/config.yaml"

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "aegis-stream",
		Short:        "Poll the weather and vector sensor endpoints and stream decoded packets",
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "Path to configuration file")

	load := func(cmd *cobra.Command) (*aegisstream.Config, error) {
		if !cmd.Flags().Changed("config") {
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				return aegisstream.DefaultConfig(), nil
			}
		}
		cfg, err := aegisstream.LoadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(
		newRunCommand(load),
		newValidateCommand(&cfgPath),
		newStatsCommand(),
		newSimulateCommand(load),
		newQuarantineCommand(load),
	)
	return root
}

type configLoader func(cmd *cobra.Command) (*aegisstream.Config, error)

func newRunCommand(load configLoader) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sensor stream using the provided config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			flow, err := aegisstream.ConfFromConfig(cfg)
			if err != nil {
				return err
			}
			return flow.StreamIN(aegisstream.StreamInHost(host)).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Override sensor.host")
	return cmd
}

func newValidateCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := aegisstream.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config %s looks good\n", *cfgPath)
			for _, ep := range cfg.Sensor.Endpoints {
				fmt.Fprintf(out, "  %-8s %s:%d (%s)\n", ep.Name, cfg.Sensor.Host, ep.Port, ep.Kind)
			}
			return nil
		},
	}
}

func cliLogger(cfg *aegisstream.Config) zerolog.Logger {
	return observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}
