package config

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost", cfg.Server.Addr)
	assert.Equal(t, 6006, cfg.Server.Port)
	assert.Equal(t, 8000, cfg.Streaming.SamplesPerMessage)
	assert.Equal(t, 100*time.Millisecond, cfg.Streaming.Interval())
	assert.Equal(t, protocol.EncodingPCM16, cfg.Streaming.EncodingValue())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: asr.internal
  port: 7007
streaming:
  samples_per_message: 4000
  seconds_per_message: 0.25
  encoding: float32
batch:
  concurrency: 3
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "asr.internal", cfg.Server.Addr)
	assert.Equal(t, 7007, cfg.Server.Port)
	assert.Equal(t, 4000, cfg.Streaming.SamplesPerMessage)
	assert.Equal(t, 250*time.Millisecond, cfg.Streaming.Interval())
	assert.Equal(t, protocol.EncodingFloat32, cfg.Streaming.EncodingValue())
	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvServerAddr:        "10.0.0.5",
		EnvServerPort:        "9000",
		EnvSamplesPerMessage: "1600",
		EnvSecondsPerMessage: "0.05",
		EnvConcurrency:       "4",
		EnvEncoding:          "float32",
		EnvMetricsAddr:       ":9100",
	}))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Server.Addr)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 1600, cfg.Streaming.SamplesPerMessage)
	assert.Equal(t, 50*time.Millisecond, cfg.Streaming.Interval())
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "float32", cfg.Streaming.Encoding)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	err := Default().ApplyEnv(envMap(map[string]string{EnvServerPort: "sixty"}))
	assert.ErrorContains(t, err, EnvServerPort)

	err = Default().ApplyEnv(envMap(map[string]string{EnvSecondsPerMessage: "fast"}))
	assert.ErrorContains(t, err, EnvSecondsPerMessage)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := NewFlags(fs).Streaming().Batch()
	require.NoError(t, fs.Parse([]string{"--port", "7001", "--samples-per-message", "320", "a.wav"}))

	cfg := Default()
	cfg.Server.Addr = "from-yaml"
	flags.Apply(cfg)

	assert.Equal(t, "from-yaml", cfg.Server.Addr)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 320, cfg.Streaming.SamplesPerMessage)
	assert.Equal(t, []string{"a.wav"}, fs.Args())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "addr"},
		{"port range", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"samples", func(c *Config) { c.Streaming.SamplesPerMessage = 0 }, "samples_per_message"},
		{"negative interval", func(c *Config) { c.Streaming.SecondsPerMessage = -1 }, "seconds_per_message"},
		{"encoding", func(c *Config) { c.Streaming.Encoding = "opus" }, "encoding"},
		{"concurrency", func(c *Config) { c.Batch.Concurrency = -2 }, "concurrency"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "file", "a.wav")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "a.wav", entry["file"])
}
