package aegisstream

import (
	"github.com/ghalamif/AegisStream/internal/app/config"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SensorConfig holds the station host, credentials, timeouts and endpoints.
	SensorConfig = config.SensorConfig
	// EndpointConfig names one polled port and the packet kind it serves.
	EndpointConfig = config.EndpointConfig
	// Policy controls aggregator capacity and consumer batching.
	Policy = ports.Policy
	// OutputConfig configures the rotated line file and console mirror.
	OutputConfig = config.OutputConfig
	// TimescaleConfig configures the optional database sink.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// QuarantineConfig configures on-disk storage of corrupted frames.
	QuarantineConfig = config.QuarantineConfig
	// LogConfig selects level and console/json output.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in station configuration.
func DefaultConfig() *Config {
	return config.Default()
}
