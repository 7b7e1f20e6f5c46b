package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ramsok/ramsok/internal/embed"
	"github.com/ramsok/ramsok/internal/index"
	"github.com/ramsok/ramsok/internal/output"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the search index",
		Long: `Index scans the docs directory and brings the search index up to date.

Documents whose content is unchanged since the last run are skipped; new
and modified documents are re-chunked and re-embedded, and deleted
documents are evicted. Use --force to discard the index and rebuild
everything, for example after switching embedding models.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder, err := embed.New(ctx, cfg.Embedder)
			if err != nil {
				return err
			}
			defer embedder.Close()

			coord, err := index.Open(ctx, cfg, embedder, force)
			if err != nil {
				return err
			}
			defer coord.Close()

			report, err := coord.Reindex(ctx, force)
			if err != nil {
				return err
			}

			if report.NoOp() {
				out.Successf("Index is up to date (%d documents unchanged)", len(report.Unchanged))
			} else {
				out.Successf("Indexed %d, removed %d, unchanged %d (%s)",
					len(report.Indexed), len(report.Removed),
					len(report.Unchanged), report.Duration.Round(time.Millisecond))
			}
			for _, id := range report.Failed {
				out.Warnf("  failed to parse: %s", id)
			}
			for _, id := range report.Unreadable {
				out.Warnf("  unreadable: %s", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Discard the index and rebuild from scratch")
	return cmd
}
