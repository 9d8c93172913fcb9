// cmd_generate.go - C-Codeerzeugung
// Hauptfunktionen: GenerateHandler
package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tfmin/tfmin/codegen"
)

// GenerateHandler - Erzeugt die C-Uebersetzungseinheit eines Graphen
func GenerateHandler(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}

	opts, err := generateOptions(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	u, err := codegen.Generate(ctx, g, opts)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" || out == "-" {
		if _, err := u.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}

		if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nUse -o FILE to write the generated code to a file.")
		}
		return nil
	}

	return writeFile(out, u)
}

func generateOptions(cmd *cobra.Command) (codegen.Options, error) {
	cat, err := catalogue(cmd)
	if err != nil {
		return codegen.Options{}, err
	}

	batch, _ := cmd.Flags().GetUint("batch")
	prefix, _ := cmd.Flags().GetString("prefix")
	name, _ := cmd.Flags().GetString("name")
	parallel, _ := cmd.Flags().GetInt("parallel")
	extern, _ := cmd.Flags().GetBool("extern-weights")

	return codegen.Options{
		Catalogue:     cat,
		Batch:         int(batch),
		Prefix:        prefix,
		Name:          name,
		Parallel:      parallel,
		ExternWeights: extern,
	}, nil
}

// writeFile - Schreibt ueber eine temporaere Datei, damit ein Fehler
// keine halbe Ausgabe hinterlaesst
func writeFile(path string, w io.WriterTo) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tfmin-*.c")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}
