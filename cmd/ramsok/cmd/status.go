package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramsok/ramsok/internal/embed"
	"github.com/ramsok/ramsok/internal/index"
	"github.com/ramsok/ramsok/internal/output"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index state and pending changes",
		Args:  cobra.NoArgs,
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

			coord, err := index.Open(ctx, cfg, embedder, false)
			if err != nil {
				return err
			}
			defer coord.Close()

			status, err := coord.Status(ctx)
			if err != nil {
				return err
			}

			if format == "json" {
				return out.JSON(status)
			}

			out.Header(fmt.Sprintf("Index: %s", cfg.IndexDir))
			out.Printf("  Documents:  %d\n", len(status.Documents))
			out.Printf("  Chunks:     %d\n", status.ChunkCount)
			out.Printf("  Model:      %s (%d dimensions)\n", status.Model, status.Dimensions)

			if len(status.Documents) > 0 {
				out.Println()
				out.Header("Documents")
				for _, d := range status.Documents {
					out.Printf("  %-40s %4d chunks  indexed %s\n",
						d.DocumentID, d.Chunks, d.IndexedAt.Local().Format("2006-01-02 15:04"))
				}
			}

			pending := status.Pending
			if pending.HasChanges() {
				out.Println()
				out.Warnf("Pending changes; run 'ramsok index':")
				if len(pending.New) > 0 {
					out.Printf("  new:     %s\n", strings.Join(pending.New, ", "))
				}
				if len(pending.Changed) > 0 {
					out.Printf("  changed: %s\n", strings.Join(pending.Changed, ", "))
				}
				if len(pending.Removed) > 0 {
					out.Printf("  removed: %s\n", strings.Join(pending.Removed, ", "))
				}
			} else {
				out.Println()
				out.Successf("Index is up to date")
			}

			for _, id := range status.Unreadable {
				out.Warnf("  unreadable: %s", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
