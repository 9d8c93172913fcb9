// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: loadGraph, catalogue, newTable
package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/importer"
	"github.com/tfmin/tfmin/kernel"
)

var errNoOutputs = errors.New("graph declares no outputs, use --output")

// loadGraph - Laedt einen Quellgraphen und baut das IR fuer die Ausgaben
func loadGraph(cmd *cobra.Command, path string) (*graph.Graph, error) {
	m, err := importer.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, err
	}

	outputs, err := cmd.Flags().GetStringSlice("output")
	if err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		outputs = m.Outputs()
	}

	if len(outputs) == 0 {
		return nil, errNoOutputs
	}

	slog.Debug("building graph", "file", path, "outputs", outputs)
	return graph.Build(m, outputs)
}

// catalogue - Kernel-Katalog mit dem minimalen Status aus --kernel-status
func catalogue(cmd *cobra.Command) (*kernel.Catalogue, error) {
	s, err := cmd.Flags().GetString("kernel-status")
	if err != nil {
		return nil, err
	}

	status, err := kernel.ParseStatus(s)
	if err != nil {
		return nil, err
	}

	return kernel.Default().WithMinStatus(status), nil
}

// newTable - Tabelle im Stil von list und show
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}
