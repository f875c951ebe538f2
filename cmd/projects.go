package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Project list ranked by cost",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := st.ListProjects()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("\n  No projects indexed. Run: velocity index")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PROJECTS  %d indexed", len(projects))))
	fmt.Println()

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			cli.Truncate(p.Name, 24),
			string(p.Provider),
			cli.FormatNumber(int64(p.SessionCount)),
			cli.FormatTokens(p.Usage.Billable()),
			cli.FormatCost(p.TotalCost),
			cli.FormatTimeAgo(p.LastActivity),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Project", "Provider", "Sessions", "Tokens", "Cost", "Active"},
		Rows:    rows,
	}))
	return nil
}
