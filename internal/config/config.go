// Package config loads client settings from defaults, an optional YAML file,
// the environment (including a .env file) and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
)

// Environment variable names
const (
	EnvServerAddr        = "ASR_SERVER_ADDR"
	EnvServerPort        = "ASR_SERVER_PORT"
	EnvSamplesPerMessage = "ASR_SAMPLES_PER_MESSAGE"
	EnvSecondsPerMessage = "ASR_SECONDS_PER_MESSAGE"
	EnvEncoding          = "ASR_ENCODING"
	EnvConcurrency       = "ASR_CONCURRENCY"
	EnvLogLevel          = "ASR_LOG_LEVEL"
	EnvLogFormat         = "ASR_LOG_FORMAT"
	EnvMetricsAddr       = "ASR_METRICS_ADDR"
)

// Config is the complete client configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Streaming StreamingConfig `yaml:"streaming"`
	Batch     BatchConfig     `yaml:"batch"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig locates the recognition server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// StreamingConfig controls the paced sender.
type StreamingConfig struct {
	SamplesPerMessage int     `yaml:"samples_per_message"`
	SecondsPerMessage float64 `yaml:"seconds_per_message"`
	Encoding          string  `yaml:"encoding"`
}

// BatchConfig controls the parallel sender.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"` // 0 = one worker per file
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: "localhost", Port: 6006},
		Streaming: StreamingConfig{SamplesPerMessage: 8000, SecondsPerMessage: 0.1, Encoding: string(protocol.EncodingPCM16)},
		Batch:     BatchConfig{Concurrency: 0},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then the environment. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServerAddr); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	if v, ok := lookup(EnvEncoding); ok {
		c.Streaming.Encoding = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvServerPort, &c.Server.Port},
		{EnvSamplesPerMessage, &c.Streaming.SamplesPerMessage},
		{EnvConcurrency, &c.Batch.Concurrency},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v, ok := lookup(EnvSecondsPerMessage); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSecondsPerMessage, err)
		}
		c.Streaming.SecondsPerMessage = f
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Streaming.Validate(); err != nil {
		return fmt.Errorf("streaming config: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

func (s *StreamingConfig) Validate() error {
	if s.SamplesPerMessage < 1 {
		return fmt.Errorf("samples_per_message must be positive, got %d", s.SamplesPerMessage)
	}
	if s.SecondsPerMessage < 0 {
		return fmt.Errorf("seconds_per_message cannot be negative, got %f", s.SecondsPerMessage)
	}
	if _, err := protocol.ParseEncoding(s.Encoding); err != nil {
		return err
	}
	return nil
}

func (b *BatchConfig) Validate() error {
	if b.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", b.Concurrency)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

// Interval returns the pause between streamed windows.
func (s *StreamingConfig) Interval() time.Duration {
	return time.Duration(s.SecondsPerMessage * float64(time.Second))
}

// EncodingValue returns the parsed wire encoding. Call Validate first.
func (s *StreamingConfig) EncodingValue() protocol.Encoding {
	enc, err := protocol.ParseEncoding(s.Encoding)
	if err != nil {
		return protocol.EncodingPCM16
	}
	return enc
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", s)
	}
}

// NewLogger creates the structured logger every component receives.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Flags holds command-line values. Only flags the user actually set are
// applied on top of the loaded configuration.
type Flags struct {
	fs     *flag.FlagSet
	values *Config
	Path   string
}

// NewFlags registers the flags shared by every program.
func NewFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: Default()}
	fs.StringVar(&f.Path, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&f.values.Server.Addr, "addr", f.values.Server.Addr, "Address of the server")
	fs.IntVar(&f.values.Server.Port, "port", f.values.Server.Port, "Port of the server")
	fs.StringVar(&f.values.Logging.Level, "log-level", f.values.Logging.Level, "Log level: debug, info, warn or error")
	fs.StringVar(&f.values.Logging.Format, "log-format", f.values.Logging.Format, "Log format: text or json")
	fs.StringVar(&f.values.Metrics.Addr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	return f
}

// Streaming registers the paced sender's flags.
func (f *Flags) Streaming() *Flags {
	f.fs.IntVar(&f.values.Streaming.SamplesPerMessage, "samples-per-message", f.values.Streaming.SamplesPerMessage, "Number of samples per message")
	f.fs.Float64Var(&f.values.Streaming.SecondsPerMessage, "seconds-per-message", f.values.Streaming.SecondsPerMessage, "We will simulate that the duration of two messages is of this value")
	f.fs.StringVar(&f.values.Streaming.Encoding, "encoding", f.values.Streaming.Encoding, "Wire sample encoding: pcm16 or float32")
	return f
}

// Batch registers the parallel sender's flags.
func (f *Flags) Batch() *Flags {
	f.fs.IntVar(&f.values.Batch.Concurrency, "concurrency", f.values.Batch.Concurrency, "Maximum files in flight (0 = all)")
	return f
}

// Apply copies explicitly set flags into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Server.Addr = f.values.Server.Addr
		case "port":
			cfg.Server.Port = f.values.Server.Port
		case "log-level":
			cfg.Logging.Level = f.values.Logging.Level
		case "log-format":
			cfg.Logging.Format = f.values.Logging.Format
		case "metrics-addr":
			cfg.Metrics.Addr = f.values.Metrics.Addr
		case "samples-per-message":
			cfg.Streaming.SamplesPerMessage = f.values.Streaming.SamplesPerMessage
		case "seconds-per-message":
			cfg.Streaming.SecondsPerMessage = f.values.Streaming.SecondsPerMessage
		case "encoding":
			cfg.Streaming.Encoding = f.values.Streaming.Encoding
		case "concurrency":
			cfg.Batch.Concurrency = f.values.Batch.Concurrency
		}
	})
}

// Resolve loads the configuration named by --config, applies set flags and
// validates the result.
func (f *Flags) Resolve() (*Config, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		return nil, err
	}
	f.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
