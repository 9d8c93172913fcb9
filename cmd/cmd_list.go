// cmd_list.go - Kernels Command
// Hauptfunktionen: KernelsHandler
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tfmin/tfmin/kernel"
)

// KernelsHandler - Listet die eingebauten Kernel in Registrierungsreihenfolge
func KernelsHandler(cmd *cobra.Command, args []string) error {
	var data [][]string
	for _, k := range kernel.Default().Kernels() {
		data = append(data, []string{k.Name(), k.Status().String(), k.Description()})
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "STATUS", "DESCRIPTION")
	table.AppendBulk(data)
	table.Render()

	return nil
}
