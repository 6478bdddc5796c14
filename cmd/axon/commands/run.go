// Package commands implements CLI command handlers for axon.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/catalog"
	"github.com/axonworks/axon/pkg/config"
	"github.com/axonworks/axon/pkg/coordinator"
	"github.com/axonworks/axon/pkg/observability"
	"github.com/axonworks/axon/pkg/render"
	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/version"
)

// ErrRunThrottled is returned by run under --strict-budget when the run
// ended with throttle denials.
var ErrRunThrottled = errors.New("run was throttled")

// RunCommand holds configuration for the run command.
type RunCommand struct {
	configPath   string
	workflowPath string
	inputsPath   string
	licenseFile  string
	format       string
	output       string
	strictBudget bool
}

// NewRunCommand creates the run command: prepare a runtime from
// configuration, execute one workflow, render the run report.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow and render the run report",
		Long: `Execute one workflow run on a freshly prepared runtime.

The workflow definition is JSON with id, nodes, and edges. Input signals
may be fed from a JSON array file. The report renders as colored text,
JSON, or a self-contained HTML page with charts.`,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.workflowPath, "workflow", "w", "", "Workflow definition file (JSON)")
	cmd.Flags().StringVar(&rc.inputsPath, "input", "", "Input signals file (JSON array)")
	cmd.Flags().StringVar(&rc.licenseFile, "license", "", "License token file (overrides configuration)")
	cmd.Flags().StringVar(&rc.format, "format", "text", "Output format: text, json, html")
	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&rc.configPath, "config", "", "Configuration file path")
	cmd.Flags().BoolVar(&rc.strictBudget, "strict-budget", false, "Exit nonzero when the run was throttled")
	_ = cmd.MarkFlagRequired("workflow")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(rc.format)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	applyRootFlags(cmd, cfg)

	providers, err := observability.Init(cfg.Observability(observability.ModeCLI, version.Version))
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	definition, err := os.ReadFile(rc.workflowPath)
	if err != nil {
		return fmt.Errorf("read workflow %s: %w", rc.workflowPath, err)
	}

	inputs, err := loadInputs(rc.inputsPath)
	if err != nil {
		return err
	}

	coord, err := newCoordinator(cfg, providers, rc.licenseFile)
	if err != nil {
		return err
	}

	defer func() {
		stopErr := coord.Stop()
		if stopErr != nil {
			providers.Logger.Warn("coordinator stop failed", "error", stopErr)
		}
	}()

	report, err := coord.ExecuteJSON(cmd.Context(), definition, inputs)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, rc.output)
	if err != nil {
		return err
	}
	defer closeOut()

	renderErr := render.Write(out, format, report, runMeta(coord))
	if renderErr != nil {
		return renderErr
	}

	if rc.strictBudget && report.ThrottleEvents > 0 {
		return &ExitError{
			Code: ExitThrottled,
			Err:  fmt.Errorf("%w: %d denials", ErrRunThrottled, report.ThrottleEvents),
		}
	}

	return nil
}

// newCoordinator assembles a coordinator from the configuration: the
// built-in catalog, local storage and LLM adapters, and the runtime
// metrics. A non-empty licenseFile replaces the configured token source.
func newCoordinator(
	cfg *config.Config,
	providers observability.Providers,
	licenseFile string,
) (*coordinator.Coordinator, error) {
	registry, err := catalog.NewRegistry()
	if err != nil {
		return nil, err
	}

	options, err := cfg.CoordinatorOptions()
	if err != nil {
		return nil, err
	}

	if licenseFile != "" {
		options.LicenseFile = licenseFile
		options.LicenseToken = nil
	}

	services, err := buildServices(cfg, providers.Logger)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewRuntime(providers.Meter)
	if err != nil {
		return nil, err
	}

	options.Registry = registry
	options.Services = services
	options.Logger = providers.Logger
	options.Metrics = metrics

	return coordinator.New(options)
}

// buildServices wires the storage and LLM adapters atoms reach through
// their run context. An empty storage root falls back to a directory
// under the system temp dir.
func buildServices(cfg *config.Config, logger *slog.Logger) (atom.Services, error) {
	root := cfg.Storage.Root
	if root == "" {
		root = filepath.Join(os.TempDir(), "axon-artifacts")
	}

	storage, err := adapters.NewLocalStorage(root, logger)
	if err != nil {
		return atom.Services{}, err
	}

	return atom.Services{Storage: storage, LLM: adapters.NewLocalLLM()}, nil
}

// loadInputs reads the optional input signal file: a JSON array of
// signals fed into the run after the entry nodes fire.
func loadInputs(path string) ([]signal.Signal, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs %s: %w", path, err)
	}

	var inputs []signal.Signal

	unmarshalErr := json.Unmarshal(data, &inputs)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("parse inputs %s: %w", path, unmarshalErr)
	}

	return inputs, nil
}

// openOutput resolves the report destination: stdout by default, a
// freshly created file under -o.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output %s: %w", path, err)
	}

	return file, func() { _ = file.Close() }, nil
}

// runMeta snapshots the runtime context the report itself does not
// carry: license tier, budget, utilization, and window populations.
func runMeta(coord *coordinator.Coordinator) render.Meta {
	status := coord.Status()

	meta := render.Meta{
		Tier:        status.License.Tier.String(),
		WorkUnitMax: status.Meter.Max,
		Utilization: status.Meter.Utilization,
	}

	for _, name := range status.Windows {
		stats := coord.Sink().WindowStats(name)
		meta.Windows = append(meta.Windows, render.WindowStat{
			Name:     name,
			Count:    stats.Count,
			Timespan: stats.Timespan,
		})
	}

	return meta
}

// applyRootFlags folds the root --quiet and --verbose flags into the
// logging level. Quiet wins.
func applyRootFlags(cmd *cobra.Command, cfg *config.Config) {
	if flagBool(cmd, "verbose") {
		cfg.Logging.Level = "debug"
	}

	if flagBool(cmd, "quiet") {
		cfg.Logging.Level = "error"
	}
}

// flagBool reads a flag that may not be registered when the command
// runs outside the root, as in tests.
func flagBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}

	return value
}
