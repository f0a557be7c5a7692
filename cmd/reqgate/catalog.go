package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/catalog"
	"github.com/deep-ion/reqgate/internal/config"
	"github.com/deep-ion/reqgate/internal/ui"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the business-rule catalog",
	Long: `Print the business-rule catalog as the same markdown table embedded
in generation prompts. Honors the configured overlay file, so the output
shows exactly the rule set the pipeline evaluates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.Builtin()
		if overlay := config.CatalogOverlay(); overlay != "" {
			rules, err := catalog.LoadOverlay(overlay)
			if err != nil {
				return fmt.Errorf("catalog overlay %s: %w", overlay, err)
			}
			cat = catalog.BuiltinWith(rules)
		}
		fmt.Print(ui.RenderMarkdown(cat.Markdown()))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
