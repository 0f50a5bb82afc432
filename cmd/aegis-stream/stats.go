package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var statsMetrics = []string{
	"aegis_packets_decoded_total",
	"aegis_checksum_failures_total",
	"aegis_session_reconnects_total",
	"aegis_packets_written_total",
	"aegis_queue_length",
}

func newStatsCommand() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the Prometheus metrics endpoint and print live counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printMetricsSnapshot(ctx, out, url); err != nil {
						fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	return cmd
}

func printMetricsSnapshot(ctx context.Context, out io.Writer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	totals, err := summarize(resp.Body)
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(statsMetrics))
	for _, name := range statsMetrics {
		short := strings.TrimSuffix(strings.TrimPrefix(name, "aegis_"), "_total")
		parts = append(parts, fmt.Sprintf("%s=%g", short, totals[name]))
	}
	fmt.Fprintf(out, "[%s] %s\n", time.Now().Format(time.RFC3339), strings.Join(parts, " "))
	return nil
}

// summarize sums every counter and gauge in a text exposition across its
// label sets.
func summarize(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64, len(families))
	for name, mf := range families {
		for _, m := range mf.GetMetric() {
			totals[name] += metricValue(mf.GetType(), m)
		}
	}
	return totals, nil
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}
