package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/spf13/cobra"
)

var (
	statutesJSON bool
	clearYes     bool
)

var statutesCmd = &cobra.Command{
	Use:   "statutes",
	Short: "List the statutes reports can cite",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The statute table needs no store
		cfg, logger, err := configure()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cfg, logger)
		if err != nil {
			return err
		}

		return printStatutes(cmd.OutOrStdout(), registry.List(), statutesJSON)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate violation statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.service.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), stats)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored violation",
	Long: `Clear deletes every indexed violation record and then the index itself.
It is not transactional: a failure part way leaves some records behind.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}

		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.service.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d violations\n", n)
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate an LLM briefing of the current statistics",
	Long: `Digest sends the aggregate statistics and the most recent reports to the
configured LLM provider and prints the markdown it returns.

Example:
  MCPOLICE_LLM_PROVIDER=openai OPENAI_API_KEY=sk-... mcpolice digest`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.printDigest(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	statutesCmd.Flags().BoolVar(&statutesJSON, "json", false, "print as JSON")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")

	rootCmd.AddCommand(statutesCmd, statsCmd, clearCmd, digestCmd)
}

func printStatutes(out io.Writer, list []model.StatuteInfo, asJSON bool) error {
	if asJSON {
		return writeIndented(out, list)
	}

	for _, s := range list {
		fmt.Fprintf(out, "%-28s %-8s %-10s %s\n", s.Article, s.Severity, s.Organization, strings.Join(s.Jurisdiction, "/"))
	}
	return nil
}

func (a *app) printDigest(ctx context.Context, out io.Writer) error {
	d, err := a.digester()
	if err != nil {
		return fmt.Errorf("configure llm: %w", err)
	}
	if d == nil {
		return fmt.Errorf("no LLM provider configured (set llm.provider)")
	}

	stats, err := a.service.Stats(ctx)
	if err != nil {
		return err
	}
	recent, err := a.service.Query(ctx, model.Filter{}, model.Pagination{Limit: 20})
	if err != nil {
		return err
	}

	digest, err := d.Digest(ctx, stats, recent.Violations)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, digest.SummaryMD)
	fmt.Fprintf(out, "\n_%s/%s, %s_\n", digest.Provider, digest.Model, digest.GeneratedAt.Format(time.RFC3339))
	return nil
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
