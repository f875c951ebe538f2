package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/store"
)

var (
	sessionsLimit      int
	sessionsProject    string
	sessionsWithAgents bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session list with details",
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	sessionsCmd.Flags().StringVarP(&sessionsProject, "project", "p", "", "Filter to project id (substring match)")
	sessionsCmd.Flags().BoolVar(&sessionsWithAgents, "subagents", false, "Include sub-agent sessions")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListSessions()
	if err != nil {
		return err
	}

	rows = lo.Filter(rows, func(r store.SessionRow, _ int) bool {
		if !sessionsWithAgents && r.Role == model.RoleSubagent {
			return false
		}
		return sessionsProject == "" || containsFold(r.ProjectID, sessionsProject)
	})
	if len(rows) == 0 {
		fmt.Println("\n  No sessions found. Run: velocity index")
		return nil
	}

	if sessionsLimit > 0 && len(rows) > sessionsLimit {
		rows = rows[:sessionsLimit]
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  showing %d", len(rows))))
	fmt.Println()

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		startStr := ""
		if !r.CreatedAt.IsZero() {
			startStr = r.CreatedAt.Local().Format("Jan 02 15:04")
		}
		name := r.ProjectID
		if r.Role == model.RoleSubagent {
			name += " (sub)"
		}
		out = append(out, []string{
			startStr,
			cli.Truncate(name, 18),
			cli.Truncate(r.FirstPrompt, 32),
			cli.FormatDuration(r.DurationSecs),
			cli.FormatNumber(int64(r.Messages)),
			cli.FormatTokens(r.Usage.Billable()),
			cli.FormatPercent(r.CacheHitRate),
			cli.FormatCost(r.TotalCost),
			cli.StatusBadge(r.Status),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Start", "Project", "Prompt", "Dur", "Msgs", "Tokens", "Cache", "Cost", "Pricing"},
		Rows:    out,
	}))
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
