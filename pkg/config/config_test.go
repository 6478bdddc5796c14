package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/config"
	"github.com/axonworks/axon/pkg/license"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(content)
	require.NoError(t, writeErr)

	tmpFile.Close()

	return tmpFile.Name()
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	// Test loading with no config file (should use defaults).
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	// Check default values.
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Runtime.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Runtime.ShutdownGrace)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "dev", cfg.Telemetry.Environment)

	// Engine sections default to zero; the coordinator fills them in.
	assert.Zero(t, cfg.Sink.Capacity)
	assert.Zero(t, cfg.Budget.Window)
	assert.Zero(t, cfg.Scheduler.AtomTimeout)
	assert.Empty(t, cfg.License.File)
	assert.Empty(t, cfg.Storage.Root)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
server:
  enabled: true
  port: 9000
  host: "0.0.0.0"

license:
  file: "/etc/axon/license.tok"
  allow_degradation: true

budget:
  thresholds: [50, 75, 100]
  buckets: 120

sink:
  capacity: 4096
  async: true

scheduler:
  max_cycle_depth: 16
  lanes:
    llm: 2

storage:
  root: "/var/lib/axon"
`

	cfg, loadErr := config.LoadConfig(writeConfigFile(t, configContent))
	require.NoError(t, loadErr)

	// Check custom values.
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/etc/axon/license.tok", cfg.License.File)
	assert.True(t, cfg.License.AllowDegradation)
	assert.Equal(t, []int{50, 75, 100}, cfg.Budget.Thresholds)
	assert.Equal(t, 120, cfg.Budget.Buckets)
	assert.Equal(t, 4096, cfg.Sink.Capacity)
	assert.True(t, cfg.Sink.Async)
	assert.Equal(t, 16, cfg.Scheduler.MaxCycleDepth)
	assert.Equal(t, int64(2), cfg.Scheduler.Lanes.LLM)
	assert.Equal(t, "/var/lib/axon", cfg.Storage.Root)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	// Set environment variables.
	t.Setenv("AXON_SERVER_PORT", "9090")
	t.Setenv("AXON_LICENSE_FILE", "/tmp/axon.tok")
	t.Setenv("AXON_RUNTIME_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("AXON_SINK_CAPACITY", "4096")

	// Load config (should pick up environment variables).
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	// Check environment variable values.
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/axon.tok", cfg.License.File)
	assert.Equal(t, 10*time.Second, cfg.Runtime.HeartbeatInterval)
	assert.Equal(t, 4096, cfg.Sink.Capacity)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	// A named file that does not exist is an error; only the search
	// path tolerates absence.
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigMalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfigFile(t, "server: [not a map\n"))
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		content string
	}{
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "port zero",
			content: "server:\n  port: 0\n",
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "negative sink capacity",
			content: "sink:\n  capacity: -1\n",
			wantErr: config.ErrInvalidCapacity,
		},
		{
			name:    "negative budget buckets",
			content: "budget:\n  buckets: -5\n",
			wantErr: config.ErrInvalidBuckets,
		},
		{
			name:    "hysteresis over 100",
			content: "budget:\n  hysteresis_pct: 150\n",
			wantErr: config.ErrInvalidHysteresis,
		},
		{
			name:    "descending thresholds",
			content: "budget:\n  thresholds: [90, 80]\n",
			wantErr: config.ErrInvalidThreshold,
		},
		{
			name:    "threshold over 100",
			content: "budget:\n  thresholds: [50, 120]\n",
			wantErr: config.ErrInvalidThreshold,
		},
		{
			name:    "garbage vendor key",
			content: "license:\n  vendor_key: \"not-hex\"\n",
			wantErr: config.ErrInvalidVendorKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateConfigAcceptsVendorKey(t *testing.T) {
	t.Parallel()

	pub, _, err := license.GenerateKeypair()
	require.NoError(t, err)

	content := "license:\n  vendor_key: \"" + license.EncodeVendorKey(pub) + "\"\n"

	cfg, loadErr := config.LoadConfig(writeConfigFile(t, content))
	require.NoError(t, loadErr)
	assert.Equal(t, license.EncodeVendorKey(pub), cfg.License.VendorKey)
}

func TestTimeDurationParsing(t *testing.T) {
	t.Parallel()

	// Test that time durations are parsed correctly.
	configContent := `
server:
  read_timeout: "15s"
  idle_timeout: "2m"

license:
  grace_period: "72h"
  clock_skew: "30s"

budget:
  window: "5m"

sink:
  max_age: "1h"

scheduler:
  atom_timeout: "45s"
  quarantine_window: "10m"
`

	cfg, loadErr := config.LoadConfig(writeConfigFile(t, configContent))
	require.NoError(t, loadErr)

	// Check time durations.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 72*time.Hour, cfg.License.GracePeriod)
	assert.Equal(t, 30*time.Second, cfg.License.ClockSkew)
	assert.Equal(t, 5*time.Minute, cfg.Budget.Window)
	assert.Equal(t, time.Hour, cfg.Sink.MaxAge)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.AtomTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.QuarantineWindow)
}
