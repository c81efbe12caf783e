package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
)

type importFlags struct {
	format       string
	dryRun       bool
	source       string
	skipOfficers bool
	semantic     bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import organization profiles from JSON or CSV",
		Long: `Imports organization profiles with their symbols, names and officers.

Each organization becomes an entity with symbol and name aliases. Officers
become person entities affiliated with the organization.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVarP(&flags.source, "source", "s", "", "Provenance recorded on aliases (default: import:<file>)")
	cmd.Flags().BoolVar(&flags.skipOfficers, "skip-officers", false, "Import organizations only")
	cmd.Flags().BoolVar(&flags.semantic, "semantic", false, "Also index new aliases in Qdrant")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	ctx := cmd.Context()

	return withDeps(ctx, depsOptions{semantic: flags.semantic}, func(d *Deps) error {
		opts := handlers.ImportOptions{
			Format:       flags.format,
			DryRun:       flags.dryRun,
			Source:       flags.source,
			SkipOfficers: flags.skipOfficers,
		}

		fmt.Printf("Importing %s...\n", filePath)

		result, err := d.Import.Handle(ctx, filePath, opts)
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		if globalJSON {
			return printJSON(result)
		}

		if len(result.Errors) > 0 {
			fmt.Printf("\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("  %s\n", e.Error())
			}
		}

		fmt.Println()
		if flags.dryRun {
			fmt.Printf("Dry run: %d organizations would be imported", result.Orgs)
		} else {
			fmt.Printf("Imported: %d organizations, %d persons, %d aliases, %d affiliations",
				result.Orgs, result.Persons, result.Aliases, result.Affiliations)
		}

		if result.Skipped > 0 {
			fmt.Printf(", %d skipped", result.Skipped)
		}

		if len(result.Errors) > 0 {
			fmt.Printf(", %d errors", len(result.Errors))
		}

		fmt.Println()

		return nil
	})
}
