package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramsok/ramsok/internal/embed"
	"github.com/ramsok/ramsok/internal/index"
	"github.com/ramsok/ramsok/internal/output"
	"github.com/ramsok/ramsok/internal/search"
)

// searchResultJSON is the stable JSON shape for --format json.
type searchResultJSON struct {
	ChunkID       int64   `json:"chunk_id"`
	Document      string  `json:"document"`
	Position      int     `json:"position"`
	Score         float64 `json:"score"`
	LexicalRank   int     `json:"lexical_rank,omitempty"`
	SemanticRank  int     `json:"semantic_rank,omitempty"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	Text          string  `json:"text"`
}

func newSearchCmd() *cobra.Command {
	var topK int
	var strategy string
	var format string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: fmt.Sprintf(`Search runs a query against the index.

The default hybrid strategy fuses BM25 keyword ranking with semantic
vector ranking using Reciprocal Rank Fusion. Available strategies: %s.`,
			strings.Join(search.Strategies(), ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())
			query := strings.Join(args, " ")

			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (available: text, json)", format)
			}

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

			if diff, err := coord.NeedsReindex(ctx); err == nil && diff.HasChanges() {
				out.Warnf("Index is stale (%d new, %d changed, %d removed documents); run 'ramsok index'",
					len(diff.New), len(diff.Changed), len(diff.Removed))
			}

			results, err := coord.Search(ctx, query, strategy, topK)
			if err != nil {
				return err
			}

			if format == "json" {
				payload := make([]searchResultJSON, 0, len(results))
				for _, r := range results {
					payload = append(payload, searchResultJSON{
						ChunkID:       r.ChunkID,
						Document:      r.Document,
						Position:      r.Position,
						Score:         r.Score,
						LexicalRank:   r.LexicalRank,
						SemanticRank:  r.SemanticRank,
						LexicalScore:  r.LexicalScore,
						SemanticScore: r.SemanticScore,
						Text:          r.Text,
					})
				}
				return out.JSON(payload)
			}

			if len(results) == 0 {
				out.Dimf("No results for %q", query)
				return nil
			}

			for i, r := range results {
				out.Header(fmt.Sprintf("%d. %s (chunk %d, score %.4f)",
					i+1, r.Document, r.Position, r.Score))
				out.Dimf("   lexical rank %s, semantic rank %s",
					rankLabel(r.LexicalRank), rankLabel(r.SemanticRank))
				out.Println(indent(snippet(r.Text, 400), "   "))
				if i < len(results)-1 {
					out.Rule()
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default: from config)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Search strategy: hybrid, lexical, semantic")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func rankLabel(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprintf("#%d", rank)
}

// snippet truncates text at a word boundary near max runes.
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
