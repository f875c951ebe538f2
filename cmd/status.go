package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
	"github.com/OptimiLabs/velocity/internal/config"
	"github.com/OptimiLabs/velocity/internal/indexer"
	"github.com/OptimiLabs/velocity/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index freshness and size",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	projects, sessions, err := st.Counts()
	if err != nil {
		return err
	}

	lastIndexed := time.Time{}
	if raw, err := st.GetMeta(store.MetaLastIndexedAt); err == nil && raw != "" {
		lastIndexed, _ = time.Parse(time.RFC3339, raw)
	}
	version, _ := st.GetMeta(store.MetaEnrichmentVersion)
	if version == "" {
		version = "unset"
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("VELOCITY  index status"))
	fmt.Println()
	fmt.Printf("  %s %s\n", cli.Header("Index:"), config.IndexPath())
	fmt.Printf("  %s %s\n", cli.Header("Plan:"), config.DetectPlan(cfg.General.ClaudeDir))
	fmt.Printf("  %s %s projects, %s sessions\n", cli.Header("Indexed:"),
		cli.FormatNumber(int64(projects)), cli.FormatNumber(int64(sessions)))
	fmt.Printf("  %s %s\n", cli.Header("Last pass:"), cli.FormatTimeAgo(lastIndexed))
	fmt.Printf("  %s %s (code %d)\n", cli.Header("Enrichment:"), version, indexer.EnrichmentVersion)

	if sessions == 0 {
		fmt.Println()
		fmt.Println(cli.Muted("  Nothing indexed yet. Run: velocity index"))
	}
	fmt.Println()
	return nil
}
