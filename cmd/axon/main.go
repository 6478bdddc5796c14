// Package main provides the entry point for the axon CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axonworks/axon/cmd/axon/commands"
	"github.com/axonworks/axon/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "axon",
		Short: "Axon - signal-driven workflow runtime",
		Long: `Axon executes signal-driven workflows: graphs of small typed atoms
wired by the signals they read and write.

Commands:
  run       Execute a workflow and render the run report
  validate  Validate a workflow definition without executing it
  atoms     List the built-in atom catalog
  license   Inspect and produce license tokens
  mcp       Start MCP server for AI agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewAtomsCommand())
	rootCmd.AddCommand(commands.NewLicenseCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "axon %s\n", version.String())
		},
	}
}
