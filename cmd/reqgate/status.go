package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status <issue-number>",
	Short: "Show an issue's position in the requirements gate",
	Long: `Show an issue's position in the requirements gate: current state,
published artifacts, and the latest decision record. Read-only.

Examples:
  reqgate status 42`,
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

		report, err := p.Status(cmd.Context(), number)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "## Issue #%d — %s\n\n", report.Issue.Number, report.Issue.Title)
		fmt.Fprintf(&b, "**Estado:** `%s`\n\n", report.State)
		if len(report.Labels) > 0 {
			fmt.Fprintf(&b, "**Labels:** %s\n\n", strings.Join(report.Labels, ", "))
		}

		b.WriteString("| Artefato | Publicado |\n|---|---|\n")
		for _, row := range []struct {
			name string
			ok   bool
		}{
			{"DuplicateReport", report.HasDupReport},
			{"BAR", report.HasBAR},
			{"Use Cases + Matriz", report.HasUseCases},
		} {
			mark := ui.IconFail
			if row.ok {
				mark = ui.IconPass
			}
			fmt.Fprintf(&b, "| %s | %s |\n", row.name, mark)
		}

		if rec := report.LatestRecord; rec != nil {
			fmt.Fprintf(&b, "\n**Última decisão:** %s — %s (%s, confiança %.2f)\n",
				rec.Skill, rec.Decision, rec.DecisionType, rec.Confidence)
			if rec.Justification != "" {
				fmt.Fprintf(&b, "> %s\n", rec.Justification)
			}
		}

		fmt.Print(ui.RenderMarkdown(b.String()))

		if report.State.Blocked() {
			fmt.Println(ui.RenderWarn(ui.IconWarn + " Issue aguardando intervenção humana."))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
