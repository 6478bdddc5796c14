// Package config provides YAML and environment configuration for the axon
// runtime and maps it onto coordinator and observability options.
package config

// Server defaults.
const (
	DefaultServerHost         = "127.0.0.1"
	DefaultServerPort         = 8765
	DefaultServerReadTimeout  = "30s"
	DefaultServerWriteTimeout = "30s"
	DefaultServerIdleTimeout  = "60s"
)

// Runtime defaults.
const (
	DefaultHeartbeatInterval = "30s"
	DefaultShutdownGrace     = "5s"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultTelemetryEnvironment = "dev"
)
