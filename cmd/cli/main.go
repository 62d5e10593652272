package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fitspace/morphsync/cmd/cli/drafts"
	"github.com/fitspace/morphsync/cmd/cli/estimate"
	"github.com/fitspace/morphsync/cmd/cli/morphs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(morphs.Group)
	rootCmd.AddCommand(morphs.Catalog, morphs.Classify)
	rootCmd.AddGroup(estimate.Group)
	rootCmd.AddCommand(estimate.Estimate)
	rootCmd.AddGroup(drafts.Group)
	rootCmd.AddCommand(drafts.Drafts)
}

var rootCmd = &cobra.Command{
	Use:           "morphsync-cli",
	Long:          `Command line utilities for inspecting the morph catalog, measurement estimates and local avatar drafts`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
