package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axonworks/axon/pkg/atoms/catalog"
	"github.com/axonworks/axon/pkg/workflow"
)

// ValidateCommand holds configuration for the validate command.
type ValidateCommand struct {
	workflowPath string
}

// NewValidateCommand creates the validate command: schema plus graph
// validation against the built-in catalog, no execution.
func NewValidateCommand() *cobra.Command {
	vc := &ValidateCommand{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow definition without executing it",
		Long: `Validate a workflow definition: JSON schema conformance, node atom
names against the built-in catalog, and edge signal compatibility.
All problems are reported at once.`,
		RunE: vc.run,
	}

	cmd.Flags().StringVarP(&vc.workflowPath, "workflow", "w", "", "Workflow definition file (JSON)")
	_ = cmd.MarkFlagRequired("workflow")

	return cmd
}

func (vc *ValidateCommand) run(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(vc.workflowPath)
	if err != nil {
		return fmt.Errorf("read workflow %s: %w", vc.workflowPath, err)
	}

	def, err := workflow.Parse(data)
	if err != nil {
		return err
	}

	registry, err := catalog.NewRegistry()
	if err != nil {
		return err
	}

	validateErr := workflow.Validate(def, registry, workflow.ValidateOptions{})
	if validateErr != nil {
		return validateErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d nodes, %d edges)\n",
		def.ID, len(def.Nodes), len(def.Edges))

	return nil
}
