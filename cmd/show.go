package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OptimiLabs/velocity/internal/cli"
	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/reconcile"
	"github.com/OptimiLabs/velocity/internal/source"
)

var showFullText bool

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's reconstructed transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showFullText, "full-text", false, "Print message text without truncation")
	rootCmd.AddCommand(showCmd)
}

func runShow(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	row, err := st.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("session %q not indexed", args[0])
	}

	var records []model.Record
	err = source.NewParser(row.Provider, row.FilePath).Stream(func(rec model.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	transcript := reconcile.Transcript(records)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSION  %s", cli.Truncate(row.ID, 40))))
	fmt.Println()
	fmt.Printf("  %s %s   %s %s   %s %s   %s %s\n\n",
		cli.Header("Project:"), row.ProjectID,
		cli.Header("Messages:"), cli.FormatNumber(int64(row.Messages)),
		cli.Header("Cost:"), cli.FormatCost(row.TotalCost),
		cli.Header("Pricing:"), cli.StatusBadge(row.Status),
	)

	for _, rec := range transcript {
		if rec.Absorbed {
			continue
		}
		printRecord(rec)
	}
	return nil
}

func printRecord(rec model.Record) {
	ts := ""
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.Local().Format("15:04:05")
	}

	label := rec.Role
	if label == "" {
		label = string(rec.Kind)
	}
	fmt.Printf("  %s %s\n", cli.Muted(ts), cli.Header(label))

	if rec.Text != "" {
		text := rec.Text
		if !showFullText {
			text = cli.Truncate(text, 200)
		}
		fmt.Printf("    %s\n", text)
	}

	for _, b := range rec.Blocks {
		switch b.Type {
		case model.BlockToolUse:
			line := fmt.Sprintf("    ⚙ %s", b.ToolName)
			if b.HasResult {
				result := b.ResultContent
				if !showFullText {
					result = cli.Truncate(result, 80)
				}
				if b.IsError {
					line += " " + cli.Muted("(error)")
				}
				line += " → " + cli.Muted(result)
			}
			fmt.Println(line)
		case model.BlockThinking:
			fmt.Println(cli.Muted("    ~ thinking"))
		}
	}

	if rec.Usage != nil && !rec.Usage.IsZero() {
		fmt.Printf("    %s\n", cli.TokenText(fmt.Sprintf("in %s / out %s",
			cli.FormatTokens(rec.Usage.Input), cli.FormatTokens(rec.Usage.Output))))
	}
	fmt.Println()
}
