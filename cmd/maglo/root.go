package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maglo/invoicing/pkg/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "maglo",
	Short: "Maglo invoicing service",
	Long: `Maglo keeps each signed-in user's invoices in sync with a document
store and serves them, together with dashboard views, over HTTP.

Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log := logger.Component("cmd")
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, indexesCmd)
}
