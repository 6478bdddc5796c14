package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/axonworks/axon/pkg/config"
	"github.com/axonworks/axon/pkg/coordinator"
	"github.com/axonworks/axon/pkg/mcp"
	"github.com/axonworks/axon/pkg/observability"
	"github.com/axonworks/axon/pkg/version"
)

// metricsShutdownTimeout bounds the sidecar HTTP server drain on exit.
const metricsShutdownTimeout = 5 * time.Second

// MCPCommand holds configuration for the mcp command.
type MCPCommand struct {
	configPath string
	debug      bool
}

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	mc := &MCPCommand{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the workflow runtime as tools that AI agents can
discover and invoke:
  - run_workflow: execute a workflow definition and return the report
  - validate_workflow: schema and graph validation without execution
  - list_atoms: the built-in atom catalog with contracts
  - window_stats: population stats for the accumulated windows

One coordinator backs every call, so windows fed by one run are visible
to later window_stats calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          mc.run,
	}

	cmd.Flags().StringVar(&mc.configPath, "config", "", "Configuration file path")
	cmd.Flags().BoolVar(&mc.debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

func (mc *MCPCommand) run(cobraCmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(mc.configPath)
	if err != nil {
		return err
	}

	providers, err := observability.Init(mc.observabilityConfig(cfg))
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	red, redErr := observability.NewREDMetrics(providers.Meter)
	if redErr != nil {
		return redErr
	}

	coord, err := newCoordinator(cfg, providers, "")
	if err != nil {
		return err
	}

	defer func() {
		stopErr := coord.Stop()
		if stopErr != nil {
			providers.Logger.Warn("coordinator stop failed", "error", stopErr)
		}
	}()

	if cfg.Server.Enabled {
		stopMetrics := startMetricsServer(cfg.Server, providers.Logger, coord)
		defer stopMetrics()
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Coordinator: coord,
		Logger:      providers.Logger,
		Metrics:     red,
		Tracer:      providers.Tracer,
	})

	return srv.Run(cobraCmd.Context())
}

// observabilityConfig maps the configuration onto MCP-mode telemetry.
// Stdio transport reserves stdout for the protocol, so logs are JSON on
// stderr. Standard OTEL_EXPORTER_* variables override the file.
func (mc *MCPCommand) observabilityConfig(cfg *config.Config) observability.Config {
	obsCfg := cfg.Observability(observability.ModeMCP, version.Version)
	obsCfg.LogJSON = true
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		obsCfg.OTLPEndpoint = endpoint
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true" {
		obsCfg.OTLPInsecure = true
	}

	if mc.debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return obsCfg
}

// startMetricsServer serves /metrics, /healthz, and /readyz on the
// configured address. Readiness turns unavailable when the license
// state denies all runs. The returned func drains the server.
func startMetricsServer(
	cfg config.ServerConfig,
	logger *slog.Logger,
	coord *coordinator.Coordinator,
) func() {
	promHandler, err := observability.PrometheusHandler()
	if err != nil {
		logger.Warn("prometheus handler unavailable", "error", err)

		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadyHandler(func(context.Context) error {
		if state := coord.Status().License.State; state.Fatal() {
			return fmt.Errorf("license state %s denies all runs", state)
		}

		return nil
	}))

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("metrics server listening", "addr", server.Addr)

		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", serveErr)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}
}
