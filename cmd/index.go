package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
	"github.com/OptimiLabs/velocity/internal/indexer"
)

var (
	flagIndexFull bool
	flagIndexNuke bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Discover and index session transcripts",
	Long:  "Scan provider data directories and bring the session index up to date. Only changed transcripts are re-aggregated unless --full or --nuke is given.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexFull, "full", false, "Re-aggregate every session regardless of change detection")
	indexCmd.Flags().BoolVar(&flagIndexNuke, "nuke", false, "Drop all indexed data and rebuild from scratch")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}

	ix := newIndexer(cfg, st)

	var res *indexer.Result
	switch {
	case flagIndexNuke:
		res, err = ix.NukeAndRebuild()
	case flagIndexFull:
		res, err = ix.Rebuild()
	default:
		res, err = ix.Incremental()
	}
	if err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Fprintln(os.Stderr)
	}

	mode := "incremental"
	if res.FullReindex {
		mode = "full"
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("INDEX  %s pass", mode)))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Projects", "Aggregated", "Skipped", "Deleted", "Failed"},
		Rows: [][]string{{
			cli.FormatNumber(int64(res.Projects)),
			cli.FormatNumber(int64(res.Sessions)),
			cli.FormatNumber(int64(res.Skipped)),
			cli.FormatNumber(int64(res.Deleted)),
			cli.FormatNumber(int64(res.Failed)),
		}},
	}))
	return nil
}
