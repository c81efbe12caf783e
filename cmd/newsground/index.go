package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the semantic alias index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed every alias into Qdrant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{semantic: true}, func(d *Deps) error {
				fmt.Printf("Rebuilding collection %s...\n", d.Config.Qdrant.Collection)
				n, err := d.Index.HandleRebuild(ctx)
				if err != nil {
					return fmt.Errorf("rebuilding index: %w", err)
				}
				fmt.Printf("Indexed %d aliases\n", n)
				return nil
			})
		},
	})

	return cmd
}
