package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/ui"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <issue-number>",
	Short: "Run duplicate and conflict detection on an issue",
	Long: `Run duplicate and conflict detection on an issue.

Publishes a DuplicateReport comment, applies the matching gate labels,
and appends a decision record. Exits non-zero when the issue is blocked
by an explicit rule violation or a critical duplicate, so a workflow job
running this stage fails the gate.

Examples:
  reqgate dedup 42`,
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

		res, err := p.RunDedup(cmd.Context(), number)
		if err != nil {
			return err
		}

		fmt.Print(ui.RenderMarkdown(res.Report))
		fmt.Println()
		if res.Blocked {
			fmt.Println(ui.RenderFail(ui.IconFail + " Issue bloqueada no estágio de verificação."))
			exitCode(1)
			return nil
		}
		fmt.Println(ui.RenderPass(ui.IconPass + " Nenhum bloqueio. Issue liberada para análise."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}

func issueArg(raw string) (int, error) {
	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid issue number %q", raw)
	}
	return number, nil
}
