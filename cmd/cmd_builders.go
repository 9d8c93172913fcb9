// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newGenerateCmd, newInspectCmd, newKernelsCmd
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tfmin/tfmin/envconfig"
)

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate GRAPH",
		Short: "Generate C code for a graph",
		Args:  cobra.ExactArgs(1),
		RunE:  GenerateHandler,
	}

	generateCmd.Flags().StringP("out", "o", "", "Write the generated code to a file instead of stdout")
	generateCmd.Flags().StringSlice("output", nil, "Output tensors of the graph (default: outputs declared in GRAPH)")
	generateCmd.Flags().Uint("batch", envconfig.BatchSize(), "Size substituted for unknown dimensions")
	generateCmd.Flags().String("prefix", envconfig.Prefix(), "Prefix for generated buffer names")
	generateCmd.Flags().String("name", "model", "Name of the generated function")
	generateCmd.Flags().Int("parallel", envconfig.NumParallel(), "Maximum number of operations lowered in parallel")
	generateCmd.Flags().Bool("extern-weights", envconfig.ExternWeights(), "Declare weights extern instead of embedding their values")
	generateCmd.Flags().String("kernel-status", envconfig.KernelStatus(), "Lowest kernel status accepted by dispatch")

	return generateCmd
}

// newInspectCmd - Erstellt den inspect Command
func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect GRAPH",
		Short: "Show the tensors and operations of a graph",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}

	inspectCmd.Flags().StringSlice("output", nil, "Output tensors of the graph (default: outputs declared in GRAPH)")
	inspectCmd.Flags().String("kernel-status", envconfig.KernelStatus(), "Lowest kernel status accepted by dispatch")

	return inspectCmd
}

// newKernelsCmd - Erstellt den kernels Command
func newKernelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "kernels",
		Aliases: []string{"ls"},
		Short:   "List the built-in kernels",
		Args:    cobra.NoArgs,
		RunE:    KernelsHandler,
	}
}
