package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <issue-number>",
	Short: "Generate the business analysis report (BAR) for an issue",
	Long: `Generate the business analysis report (BAR) for an issue.

Publishes the BAR as an issue comment and evaluates Checkpoint A: low
confidence, regulated-data scope, or unresolved critical ambiguity
escalates the issue to human QA instead of advancing it. Escalation is
a normal checkpoint outcome, not a command failure.

Without a configured API key the BAR is built deterministically from
the issue text and the rule catalog.

Examples:
  reqgate analyze 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := issueArg(args[0])
		if err != nil {
			return err
		}
		p, err := newPipeline()
		if err != nil {
			return err
		}

		res, err := p.RunAnalysis(cmd.Context(), number)
		if err != nil {
			return err
		}

		fmt.Print(ui.RenderMarkdown(res.BAR))
		fmt.Println()
		if res.Escalated {
			fmt.Println(ui.RenderWarn(ui.IconWarn + " Checkpoint A escalado para revisão humana."))
			return nil
		}
		fmt.Println(ui.RenderPass(ui.IconPass + " BAR publicado, aguardando aprovação humana."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
