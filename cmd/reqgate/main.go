package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deep-ion/reqgate/internal/catalog"
	"github.com/deep-ion/reqgate/internal/config"
	"github.com/deep-ion/reqgate/internal/debug"
	"github.com/deep-ion/reqgate/internal/pipeline"
	"github.com/deep-ion/reqgate/internal/telemetry"
	"github.com/deep-ion/reqgate/internal/textgen"
	"github.com/deep-ion/reqgate/internal/tracker"
)

var (
	cfgFile     string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "reqgate",
	Short: "reqgate - Requirements gate for issue-driven delivery",
	Long: `Requirements engineering pipeline over tracker issues.

Each subcommand is one pipeline stage: dedup scans for duplicates and
rule conflicts, analyze publishes the business analysis report, model
publishes canonical use cases for Gate 2. Stage outcomes are persisted
as issue comments and labels, so re-runs are idempotent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verboseFlag {
			debug.SetVerbose(true)
		}
		if err := config.Init(cfgFile); err != nil {
			return err
		}
		return telemetry.Init(cmd.Context(), "reqgate", Version)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./reqgate.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
}

// newPipeline wires a pipeline from environment and configuration: tracker
// from GITHUB_TOKEN/GITHUB_REPOSITORY, generator from the configured API key
// (absent key means deterministic fallback documents), catalog from the
// built-in rules plus an optional overlay file.
func newPipeline() (*pipeline.Pipeline, error) {
	client, err := tracker.NewFromEnv()
	if err != nil {
		return nil, err
	}

	p := pipeline.New(client)
	p.Threshold = config.SimilarityThreshold()
	p.PromptsDir = config.PromptsDir()

	if overlay := config.CatalogOverlay(); overlay != "" {
		rules, err := catalog.LoadOverlay(overlay)
		if err != nil {
			return nil, fmt.Errorf("catalog overlay %s: %w", overlay, err)
		}
		p.Catalog = catalog.BuiltinWith(rules)
	}

	gen, err := textgen.NewAnthropic(config.APIKey(), config.Model())
	switch {
	case errors.Is(err, textgen.ErrAPIKeyRequired):
		debug.Logf("reqgate: no API key configured, using deterministic fallbacks\n")
	case err != nil:
		return nil, err
	default:
		p.Generator = gen
	}

	return p, nil
}

// exitStatus is the process exit code set by stage commands; deferred until
// after PersistentPostRun so telemetry still flushes on a failed gate.
var exitStatus int

func exitCode(code int) {
	if code > exitStatus {
		exitStatus = code
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitStatus)
}
