package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/Twixes/mcpolice/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency   int
	importTimeout time.Duration
	importRate    float64
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Submit violation reports from a JSONL file",
	Long: `Import reads one JSON report per line and submits each through the
same validation as the HTTP endpoints. Blank lines and lines starting
with # are skipped; duplicate lines are submitted once.

Line format:
  {"statute": "GDPR Article 5", "responsible_organization": "Acme", "offending_content": "...", "detected_by": "crawler"}

Example:
  mcpolice import reports.jsonl
  mcpolice import reports.jsonl --concurrency 8 --rate 50`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	importCmd.Flags().DurationVar(&importTimeout, "timeout", 10*time.Minute, "total timeout for the import")
	importCmd.Flags().Float64Var(&importRate, "rate", 0, "maximum reports submitted per second (0 = unlimited)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), importTimeout)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.importFile(ctx, cmd.OutOrStdout(), args[0], concurrency, importRate)
}

// importFile submits every entry of path and prints a per-line summary
func (a *app) importFile(ctx context.Context, out io.Writer, path string, workers int, rate float64) error {
	start := time.Now()
	results, err := worker.NewImporter(a.service, workers).WithRate(rate).ImportFile(ctx, path)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Fprintf(out, "✗ line %d: %v\n", r.Line, r.Error)
			continue
		}
		a.logger.Debug("Imported report", "line", r.Line, "id", r.Record.ID)
	}

	fmt.Fprintf(out, "\nImported %d of %d reports in %s (%d failed)\n",
		len(results)-failed, len(results), time.Since(start).Round(time.Millisecond), failed)

	if failed > 0 {
		return fmt.Errorf("%d reports failed to import", failed)
	}
	return nil
}
