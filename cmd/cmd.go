// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tfmin/tfmin/envconfig"
	"github.com/tfmin/tfmin/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "tfmin",
		Short:         "Generate dependency free C code from neural network graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
			slog.Debug("tfmin config", "env", envconfig.Values())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	// Commands erstellen
	generateCmd := newGenerateCmd()
	inspectCmd := newInspectCmd()
	kernelsCmd := newKernelsCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()

	for _, cmd := range []*cobra.Command{
		generateCmd,
		inspectCmd,
		kernelsCmd,
	} {
		switch cmd {
		case generateCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["TFMIN_DEBUG"],
				envVars["TFMIN_BATCH_SIZE"],
				envVars["TFMIN_NUM_PARALLEL"],
				envVars["TFMIN_PREFIX"],
				envVars["TFMIN_KERNEL_STATUS"],
				envVars["TFMIN_EXTERN_WEIGHTS"],
			})
		case inspectCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["TFMIN_DEBUG"],
				envVars["TFMIN_KERNEL_STATUS"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["TFMIN_DEBUG"]})
		}
	}

	rootCmd.AddCommand(
		generateCmd,
		inspectCmd,
		kernelsCmd,
	)

	return rootCmd
}
