// Package config provides configuration loading and validation for the axon runtime.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/coordinator"
	"github.com/axonworks/axon/pkg/license"
	"github.com/axonworks/axon/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidPort       = errors.New("invalid server port")
	ErrInvalidCapacity   = errors.New("sink capacity must not be negative")
	ErrInvalidBuckets    = errors.New("budget buckets must not be negative")
	ErrInvalidThreshold  = errors.New("budget thresholds must ascend within 1..100")
	ErrInvalidHysteresis = errors.New("budget hysteresis must be within 0..100")
	ErrInvalidVendorKey  = errors.New("invalid license vendor key")
)

const maxPort = 65535

// Config holds all configuration for the axon runtime.
type Config struct {
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	License   LicenseConfig   `mapstructure:"license"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Server    ServerConfig    `mapstructure:"server"`
}

// RuntimeConfig holds coordinator lifecycle configuration.
type RuntimeConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
	MeshEnabled       bool          `mapstructure:"mesh_enabled"`
}

// LicenseConfig holds license token and verification configuration.
// The inline token wins over the file when both are set; neither set
// selects the free tier.
type LicenseConfig struct {
	File             string        `mapstructure:"file"`
	Token            string        `mapstructure:"token"`
	VendorKey        string        `mapstructure:"vendor_key"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	ClockSkew        time.Duration `mapstructure:"clock_skew"`
	AllowDegradation bool          `mapstructure:"allow_degradation"`
}

// BudgetConfig holds work-unit meter configuration. Zero values select
// the meter defaults.
type BudgetConfig struct {
	Thresholds    []int         `mapstructure:"thresholds"`
	Window        time.Duration `mapstructure:"window"`
	Buckets       int           `mapstructure:"buckets"`
	HysteresisPct int           `mapstructure:"hysteresis_pct"`
}

// SinkConfig holds signal bus configuration. Zero values select the
// sink defaults.
type SinkConfig struct {
	Capacity int           `mapstructure:"capacity"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Async    bool          `mapstructure:"async"`
}

// SchedulerConfig holds workflow execution configuration. Zero values
// select the scheduler defaults.
type SchedulerConfig struct {
	Lanes              LaneConfig    `mapstructure:"lanes"`
	AtomTimeout        time.Duration `mapstructure:"atom_timeout"`
	CoordinatorTimeout time.Duration `mapstructure:"coordinator_timeout"`
	MaxCycleDepth      int           `mapstructure:"max_cycle_depth"`
	QuarantineAfter    int           `mapstructure:"quarantine_after"`
	QuarantineWindow   time.Duration `mapstructure:"quarantine_window"`
}

// LaneConfig caps concurrent firings per lane. Zero leaves a lane at
// its built-in limit.
type LaneConfig struct {
	Fast int64 `mapstructure:"fast"`
	IO   int64 `mapstructure:"io"`
	ML   int64 `mapstructure:"ml"`
	LLM  int64 `mapstructure:"llm"`
}

// StorageConfig holds artifact storage configuration. An empty root
// disables the storage service.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OTLP export configuration. An empty endpoint
// leaves tracing and metrics export disabled.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// ServerConfig holds HTTP server configuration for the MCP transport.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/axon")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix("AXON")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file.
	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key is
// registered so environment overrides survive Unmarshal.
func setDefaults(viperCfg *viper.Viper) {
	// Runtime defaults.
	viperCfg.SetDefault("runtime.heartbeat_interval", DefaultHeartbeatInterval)
	viperCfg.SetDefault("runtime.shutdown_grace", DefaultShutdownGrace)
	viperCfg.SetDefault("runtime.mesh_enabled", false)

	// License defaults. Empty selects the free tier.
	viperCfg.SetDefault("license.file", "")
	viperCfg.SetDefault("license.token", "")
	viperCfg.SetDefault("license.vendor_key", "")
	viperCfg.SetDefault("license.grace_period", "0s")
	viperCfg.SetDefault("license.clock_skew", "0s")
	viperCfg.SetDefault("license.allow_degradation", false)

	// Budget defaults. Zero selects the meter defaults.
	viperCfg.SetDefault("budget.window", "0s")
	viperCfg.SetDefault("budget.buckets", 0)
	viperCfg.SetDefault("budget.thresholds", []int{})
	viperCfg.SetDefault("budget.hysteresis_pct", 0)

	// Sink defaults. Zero selects the sink defaults.
	viperCfg.SetDefault("sink.capacity", 0)
	viperCfg.SetDefault("sink.max_age", "0s")
	viperCfg.SetDefault("sink.async", false)

	// Scheduler defaults. Zero selects the scheduler defaults.
	viperCfg.SetDefault("scheduler.atom_timeout", "0s")
	viperCfg.SetDefault("scheduler.coordinator_timeout", "0s")
	viperCfg.SetDefault("scheduler.max_cycle_depth", 0)
	viperCfg.SetDefault("scheduler.quarantine_after", 0)
	viperCfg.SetDefault("scheduler.quarantine_window", "0s")
	viperCfg.SetDefault("scheduler.lanes.fast", 0)
	viperCfg.SetDefault("scheduler.lanes.io", 0)
	viperCfg.SetDefault("scheduler.lanes.ml", 0)
	viperCfg.SetDefault("scheduler.lanes.llm", 0)

	// Storage defaults. Empty disables the storage service.
	viperCfg.SetDefault("storage.root", "")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.environment", DefaultTelemetryEnvironment)
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.trace_verbose", false)

	// Server defaults.
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)
	viperCfg.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultServerIdleTimeout)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Sink.Capacity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, config.Sink.Capacity)
	}

	if config.Budget.Buckets < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBuckets, config.Budget.Buckets)
	}

	if config.Budget.HysteresisPct < 0 || config.Budget.HysteresisPct > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidHysteresis, config.Budget.HysteresisPct)
	}

	previous := 0
	for _, threshold := range config.Budget.Thresholds {
		if threshold < 1 || threshold > 100 || threshold <= previous {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, config.Budget.Thresholds)
		}

		previous = threshold
	}

	if config.License.VendorKey != "" {
		_, decodeErr := license.DecodeVendorKey(config.License.VendorKey)
		if decodeErr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidVendorKey, decodeErr)
		}
	}

	return nil
}

// CoordinatorOptions maps the configuration onto coordinator options.
// Zero fields pass through so the coordinator applies its own defaults.
func (c *Config) CoordinatorOptions() (coordinator.Options, error) {
	options := coordinator.Options{
		LicenseFile:              c.License.File,
		LicenseGracePeriod:       c.License.GracePeriod,
		ClockSkew:                c.License.ClockSkew,
		AllowFreeTierDegradation: c.License.AllowDegradation,
		EnableMesh:               c.Runtime.MeshEnabled,
		HeartbeatInterval:        c.Runtime.HeartbeatInterval,
		ShutdownGrace:            c.Runtime.ShutdownGrace,
		WorkUnitWindow:           c.Budget.Window,
		WorkUnitBuckets:          c.Budget.Buckets,
		ThresholdHysteresisPct:   c.Budget.HysteresisPct,
		SinkCapacity:             c.Sink.Capacity,
		SinkMaxAge:               c.Sink.MaxAge,
		SinkAsync:                c.Sink.Async,
		LaneLimits:               c.Scheduler.Lanes.limits(),
		AtomTimeout:              c.Scheduler.AtomTimeout,
		CoordinatorTimeout:       c.Scheduler.CoordinatorTimeout,
		MaxCycleDepth:            c.Scheduler.MaxCycleDepth,
		QuarantineAfter:          c.Scheduler.QuarantineAfter,
		QuarantineWindow:         c.Scheduler.QuarantineWindow,
	}

	if c.License.Token != "" {
		options.LicenseToken = []byte(c.License.Token)
	}

	if len(c.Budget.Thresholds) > 0 {
		options.WorkUnitThresholds = slices.Clone(c.Budget.Thresholds)
	}

	if c.License.VendorKey != "" {
		key, decodeErr := license.DecodeVendorKey(c.License.VendorKey)
		if decodeErr != nil {
			return coordinator.Options{}, fmt.Errorf("%w: %v", ErrInvalidVendorKey, decodeErr)
		}

		options.VendorKey = key
	}

	return options, nil
}

// limits converts the lane section into scheduler lane caps, dropping
// zero and negative entries.
func (l LaneConfig) limits() map[atom.Lane]int64 {
	limits := make(map[atom.Lane]int64, 4)

	if l.Fast > 0 {
		limits[atom.LaneFast] = l.Fast
	}

	if l.IO > 0 {
		limits[atom.LaneIO] = l.IO
	}

	if l.ML > 0 {
		limits[atom.LaneML] = l.ML
	}

	if l.LLM > 0 {
		limits[atom.LaneLLM] = l.LLM
	}

	if len(limits) == 0 {
		return nil
	}

	return limits
}

// Observability maps the logging and telemetry sections onto an
// observability configuration for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version
	obsCfg.Mode = mode
	obsCfg.Environment = c.Telemetry.Environment
	obsCfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	obsCfg.DebugTrace = c.Telemetry.DebugTrace
	obsCfg.TraceVerbose = c.Telemetry.TraceVerbose
	obsCfg.SampleRatio = c.Telemetry.SampleRatio
	obsCfg.LogLevel = ParseLogLevel(c.Logging.Level)
	obsCfg.LogJSON = strings.EqualFold(c.Logging.Format, "json")

	return obsCfg
}

// ParseLogLevel maps a level name onto a slog level. Unknown names
// select info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
