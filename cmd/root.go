package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
	"github.com/OptimiLabs/velocity/internal/config"
	"github.com/OptimiLabs/velocity/internal/indexer"
	"github.com/OptimiLabs/velocity/internal/store"
)

var (
	flagConfig string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Session index for AI coding assistants",
	Long:  "Index and analyze coding-assistant session transcripts: tokens, costs, tools, and more.",
	RunE:  runStatus,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openStore() (*store.Store, error) {
	return store.Open(config.IndexPath())
}

func newIndexer(cfg config.Config, st *store.Store) *indexer.Indexer {
	progress := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%50 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Aggregating %s", cli.RenderProgressBar(current, total, 20))
		}
	}

	return indexer.New(st, indexer.Options{
		Roots:                cfg.Roots(),
		Resolver:             cfg.Resolver(),
		Plan:                 config.DetectPlan(cfg.General.ClaudeDir),
		DefaultContextWindow: cfg.Index.DefaultContextWindow,
		LatencyCeiling:       cfg.LatencyCeiling(),
		BatchWidth:           cfg.Index.BatchWidth,
		BatchDelay:           cfg.BatchDelay(),
		Progress:             progress,
	})
}
