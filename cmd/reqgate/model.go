package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/ui"
)

var modelCmd = &cobra.Command{
	Use:   "model <issue-number>",
	Short: "Generate canonical use cases and traceability matrix",
	Long: `Generate canonical use cases and the traceability matrix from the
approved BAR, publishing them for Gate 2.

Requires a published BAR on the issue; fails otherwise. A BAR declaring
regulated-data scope short-circuits the stage and escalates instead of
producing use cases. Generated documents are always complemented so
every triggered rule's canonical failure message appears verbatim.

Examples:
  reqgate model 42`,
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

		res, err := p.RunModeling(cmd.Context(), number)
		if err != nil {
			return err
		}

		if res.LGPDBlocked {
			fmt.Println(ui.RenderWarn(ui.IconWarn + " Escopo LGPD declarado: issue escalada, sem geração de UCs."))
			return nil
		}
		fmt.Print(ui.RenderMarkdown(res.Document))
		fmt.Println()
		fmt.Println(ui.RenderPass(ui.IconPass + " UCs canônicos publicados para Gate 2."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
}
