// Package cmd provides the CLI commands for ramsok.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ramsok/ramsok/internal/config"
	"github.com/ramsok/ramsok/internal/logging"
	"github.com/ramsok/ramsok/pkg/version"
)

var (
	flagDocsDir    string
	flagConfigPath string
	flagDebug      bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the ramsok CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ramsok",
		Short: "Hybrid search over contract documents",
		Long: `Ramsok indexes a directory of documents (PDF, DOCX, TXT) and answers
queries with hybrid retrieval: BM25 keyword search fused with semantic
vector search via Reciprocal Rank Fusion.

Indexing is incremental: only documents whose content changed since the
last run are re-chunked and re-embedded.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("ramsok version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&flagDocsDir, "docs", "d", ".", "Directory containing the source documents")
	cmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Config file path (default: <docs>/ramsok.yaml)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging to ~/.ramsok/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if flagDebug {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if flagDebug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig resolves and validates the effective configuration.
func loadConfig() (config.Config, error) {
	path := flagConfigPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultConfigPath(flagDocsDir)
	}

	cfg, err := config.Load(path, flagDocsDir, explicit)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
