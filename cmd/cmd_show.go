// cmd_show.go - Inspect Command
// Hauptfunktionen: InspectHandler, showGraph
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/kernel"
)

// InspectHandler - Zeigt Tensoren und Operationen eines Graphen mit dem
// jeweils gewaehlten Kernel
func InspectHandler(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}

	cat, err := catalogue(cmd)
	if err != nil {
		return err
	}

	return showGraph(g, cat, cmd.OutOrStdout())
}

// showGraph - Gibt die Tabellen fuer Tensoren und Operationen aus
func showGraph(g *graph.Graph, cat *kernel.Catalogue, w io.Writer) error {
	tableRender := func(header string, columns []string, rows [][]string) {
		fmt.Fprintln(w, " ", header)
		table := newTable(w, columns...)
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintln(w)
	}

	var tensors [][]string
	for _, t := range g.Tensors() {
		tensors = append(tensors, []string{t.Label, t.Kind.String(), t.DType.String(), t.Shape.String()})
	}
	tableRender("Tensors", []string{"LABEL", "KIND", "DTYPE", "SHAPE"}, tensors)

	var ops [][]string
	var unsupported int
	for _, op := range g.Operations() {
		name := "-"
		if k, err := cat.Dispatch(g, op); errors.Is(err, kernel.ErrUnsupportedOperation) {
			unsupported++
		} else if err != nil {
			return err
		} else {
			name = k.Name()
		}
		ops = append(ops, []string{op.Label, op.Type, name, op.Params.String()})
	}
	tableRender("Operations", []string{"LABEL", "TYPE", "KERNEL", "PARAMS"}, ops)

	if unsupported > 0 {
		fmt.Fprintf(w, "  %d of %d operations have no kernel\n", unsupported, len(ops))
	}

	return nil
}
