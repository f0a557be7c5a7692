package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of reqgate (overridden by ldflags at build time)
	Version = "0.3.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reqgate version %s (%s)\n", Version, Build)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
