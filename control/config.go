// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Process configuration: defaults, YAML file, TSRELAY_* environment
// overrides and validation. Immutable once the relay is running.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/tsrelay/api"
	"github.com/momentics/tsrelay/internal/logging"
	"github.com/momentics/tsrelay/relay"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TSRELAY_"

// Config is the full process configuration.
type Config struct {
	SourcePort        int         `yaml:"source_port"`
	ClientPort        int         `yaml:"client_port"`
	LatencyMS         int         `yaml:"latency_ms"`
	MaxClients        int         `yaml:"max_clients"`
	QueueDepth        int         `yaml:"queue_depth"`
	PacketSize        int         `yaml:"packet_size"`
	FragmentFactor    int         `yaml:"fragment_factor"`
	SocketBufferBytes int         `yaml:"socket_buffer_bytes"`
	PollTimeoutMS     int         `yaml:"poll_timeout_ms"`
	IdlePauseUS       int         `yaml:"idle_pause_us"`
	StatsIntervalMS   int         `yaml:"stats_interval_ms"`
	CPU               int         `yaml:"cpu"` // pin the relay loop to this CPU, -1 disables
	Log               LogConfig   `yaml:"log"`
	Stats             StatsConfig `yaml:"stats"`
}

// LogConfig selects the log level, encoding and optional rotated file.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// StatsConfig configures the HTTP stats endpoint; empty Listen disables it.
type StatsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the built-in defaults. Ports are left unset.
func DefaultConfig() *Config {
	return &Config{
		MaxClients:        relay.DefaultMaxClients,
		QueueDepth:        relay.DefaultQueueDepth,
		PacketSize:        relay.DefaultPacketSize,
		FragmentFactor:    relay.DefaultFragmentFactor,
		SocketBufferBytes: relay.DefaultSocketBuffer,
		PollTimeoutMS:     int(relay.DefaultPollTimeout / time.Millisecond),
		IdlePauseUS:       int(relay.DefaultIdlePause / time.Microsecond),
		StatsIntervalMS:   int(relay.DefaultStatsInterval / time.Millisecond),
		CPU:               -1,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig builds a configuration from defaults, the YAML file at path
// (skipped when empty) and the process environment. It does not validate:
// positional arguments may still fill in the ports.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TSRELAY_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"SOURCE_PORT", &c.SourcePort},
		{"CLIENT_PORT", &c.ClientPort},
		{"LATENCY_MS", &c.LatencyMS},
		{"MAX_CLIENTS", &c.MaxClients},
		{"QUEUE_DEPTH", &c.QueueDepth},
		{"PACKET_SIZE", &c.PacketSize},
		{"FRAGMENT_FACTOR", &c.FragmentFactor},
		{"SOCKET_BUFFER_BYTES", &c.SocketBufferBytes},
		{"POLL_TIMEOUT_MS", &c.PollTimeoutMS},
		{"IDLE_PAUSE_US", &c.IdlePauseUS},
		{"STATS_INTERVAL_MS", &c.StatsIntervalMS},
		{"CPU", &c.CPU},
		{"LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB},
		{"LOG_MAX_BACKUPS", &c.Log.MaxBackups},
		{"LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays},
	}
	for _, f := range ints {
		v, ok := lookup(EnvPrefix + f.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, f.name, v, api.ErrInvalidArgument)
		}
		*f.dst = n
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
		{"LOG_FILE", &c.Log.File},
		{"STATS_LISTEN", &c.Stats.Listen},
	}
	for _, f := range strs {
		if v, ok := lookup(EnvPrefix + f.name); ok && v != "" {
			*f.dst = v
		}
	}
	return nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	for _, p := range []struct {
		name string
		port int
	}{{"source port", c.SourcePort}, {"client port", c.ClientPort}} {
		if p.port < 1 || p.port > 65535 {
			return fmt.Errorf("%s %d out of range: %w", p.name, p.port, api.ErrInvalidArgument)
		}
	}
	if c.SourcePort == c.ClientPort {
		return fmt.Errorf("source and client port are both %d: %w", c.SourcePort, api.ErrInvalidArgument)
	}
	if c.LatencyMS < 0 || c.SocketBufferBytes < 0 {
		return fmt.Errorf("negative latency or socket buffer: %w", api.ErrInvalidArgument)
	}
	if c.CPU < -1 {
		return fmt.Errorf("cpu %d: %w", c.CPU, api.ErrInvalidArgument)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q: %w", c.Log.Format, api.ErrInvalidArgument)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return c.Relay().Validate()
}

// Relay converts the configuration into hub parameters.
func (c *Config) Relay() relay.Config {
	return relay.Config{
		PacketSize:      c.PacketSize,
		FragmentFactor:  c.FragmentFactor,
		QueueDepth:      c.QueueDepth,
		MaxClients:      c.MaxClients,
		PollTimeout:     time.Duration(c.PollTimeoutMS) * time.Millisecond,
		IdlePause:       time.Duration(c.IdlePauseUS) * time.Microsecond,
		StatsInterval:   time.Duration(c.StatsIntervalMS) * time.Millisecond,
		MaxWaitFailures: relay.DefaultMaxWaitFailures,
		Conn: api.ConnOptions{
			SendBuffer: c.SocketBufferBytes,
			RecvBuffer: c.SocketBufferBytes,
			Latency:    time.Duration(c.LatencyMS) * time.Millisecond,
			NoDelay:    true,
		},
	}
}
