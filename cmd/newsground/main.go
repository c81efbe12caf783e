// Package main provides the entry point for the newsground CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version       = "0.1.0-dev"
	globalVerbose bool
	globalJSON    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "newsground",
		Short:         "Ground financial news mentions to canonical entities",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().BoolVar(&globalJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newResolveCmd(),
		newGroundCmd(),
		newWatchCmd(),
		newLookupCmd(),
		newCacheCmd(),
		newEntitiesCmd(),
		newAliasCmd(),
		newAffiliateCmd(),
		newExportCmd(),
		newIndexCmd(),
		newServeCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
