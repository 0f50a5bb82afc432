package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/AegisStream/internal/adapters/sink"
	"github.com/ghalamif/AegisStream/internal/app/session"
	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

type Config struct {
	Sensor     SensorConfig     `yaml:"sensor"`
	Policy     ports.Policy     `yaml:"policy"`
	Output     OutputConfig     `yaml:"output"`
	Timescale  TimescaleConfig  `yaml:"timescale"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Quarantine QuarantineConfig `yaml:"quarantine"`
	Log        LogConfig        `yaml:"log"`
}

type SensorConfig struct {
	Host           string           `yaml:"host"`
	AuthKey        string           `yaml:"auth_key"`
	Command        string           `yaml:"command"`
	HandshakeLen   int              `yaml:"handshake_len"`
	ConnectTimeout time.Duration    `yaml:"connect_timeout"`
	ReadTimeout    time.Duration    `yaml:"read_timeout"`
	RetryDelay     time.Duration    `yaml:"retry_delay"`
	Endpoints      []EndpointConfig `yaml:"endpoints"`
}

type EndpointConfig struct {
	Name string      `yaml:"name"`
	Port int         `yaml:"port"`
	Kind domain.Kind `yaml:"kind"`
}

type OutputConfig struct {
	sink.FileConfig `yaml:",inline"`
	// Console mirrors every line to stdout; nil means enabled.
	Console *bool `yaml:"console"`
}

func (o OutputConfig) ConsoleEnabled() bool { return o.Console == nil || *o.Console }

// TimescaleConfig is optional: an empty ConnString disables the database sink.
type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type QuarantineConfig struct {
	Dir     string `yaml:"dir"`
	Enabled *bool  `yaml:"enabled"`
}

func (q QuarantineConfig) IsEnabled() bool { return q.Enabled == nil || *q.Enabled }

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DefaultHost       = "95.163.237.76"
	DefaultOutputFile = "sensors_data.txt"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Sensor
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.AuthKey == "" {
		s.AuthKey = session.DefaultAuthKey
	}
	if s.Command == "" {
		s.Command = session.DefaultCommand
	}
	if s.HandshakeLen == 0 {
		s.HandshakeLen = session.DefaultHandshakeLen
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = session.DefaultConnectTimeout
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 5 * time.Second
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = session.DefaultRetryDelay
	}
	if len(s.Endpoints) == 0 {
		s.Endpoints = []EndpointConfig{
			{Name: "weather", Port: 5123, Kind: domain.KindWeather},
			{Name: "vector", Port: 5124, Kind: domain.KindVector},
		}
	}
	for i := range s.Endpoints {
		if s.Endpoints[i].Name == "" {
			s.Endpoints[i].Name = s.Endpoints[i].Kind.String()
		}
	}

	if c.Policy.QueueCapacity == 0 {
		c.Policy.QueueCapacity = 100
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}

	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputFile
	}
	if c.Output.MaxSizeMB == 0 {
		c.Output.MaxSizeMB = 100
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "sensor_packets"
	}
	if c.Quarantine.Dir == "" {
		c.Quarantine.Dir = "./data/quarantine"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) validate() error {
	s := c.Sensor
	if s.HandshakeLen < 0 {
		return fmt.Errorf("sensor.handshake_len must not be negative")
	}
	if s.ConnectTimeout < 0 || s.ReadTimeout < 0 || s.RetryDelay < 0 {
		return fmt.Errorf("sensor timeouts must not be negative")
	}
	seen := make(map[string]bool, len(s.Endpoints))
	for i, ep := range s.Endpoints {
		if ep.Port <= 0 || ep.Port > 65535 {
			return fmt.Errorf("sensor.endpoints[%d]: port %d out of range", i, ep.Port)
		}
		if !ep.Kind.Valid() {
			return fmt.Errorf("sensor.endpoints[%d]: kind is required", i)
		}
		if seen[ep.Name] {
			return fmt.Errorf("sensor.endpoints[%d]: duplicate name %q", i, ep.Name)
		}
		seen[ep.Name] = true
	}
	if c.Policy.QueueCapacity < 0 {
		return fmt.Errorf("policy.queue_capacity must be positive")
	}
	if c.Policy.MaxBatchSize < 0 {
		return fmt.Errorf("policy.max_batch_size must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Endpoints resolves the configured endpoints against the sensor host.
func (c *Config) Endpoints() []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(c.Sensor.Endpoints))
	for _, ep := range c.Sensor.Endpoints {
		out = append(out, domain.Endpoint{Name: ep.Name, Host: c.Sensor.Host, Port: ep.Port, Kind: ep.Kind})
	}
	return out
}

// Sessions returns one session configuration per endpoint.
func (c *Config) Sessions() []session.Config {
	eps := c.Endpoints()
	out := make([]session.Config, 0, len(eps))
	for _, ep := range eps {
		out = append(out, session.Config{
			Endpoint:       ep,
			AuthKey:        []byte(c.Sensor.AuthKey),
			Command:        []byte(c.Sensor.Command),
			HandshakeLen:   c.Sensor.HandshakeLen,
			ConnectTimeout: c.Sensor.ConnectTimeout,
			RetryDelay:     c.Sensor.RetryDelay,
		})
	}
	return out
}
