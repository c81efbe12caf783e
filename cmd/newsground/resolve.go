package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
)

type resolveFlags struct {
	kind     string
	symbols  []string
	text     string
	sourceID string
}

func newResolveCmd() *cobra.Command {
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve <mention>",
		Short: "Resolve a mention against the local entity store",
		Long: `Resolves a surface form to a canonical entity using symbols, aliases,
person name keys and full-text search, in that order.

Examples:
  newsground resolve AAPL
  newsground resolve "T. Cook" --kind person --symbols AAPL
  newsground resolve Delta --kind org --text "Delta cut flights to Atlanta"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, strings.Join(args, " "), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.kind, "kind", "k", "", "Mention kind (org, person, product, fund, regulator, symbol)")
	cmd.Flags().StringSliceVar(&flags.symbols, "symbols", nil, "Symbols mentioned in the same article")
	cmd.Flags().StringVar(&flags.text, "text", "", "Article text around the mention")
	cmd.Flags().StringVar(&flags.sourceID, "source-id", "", "Identifier of the source article")

	return cmd
}

func runResolve(cmd *cobra.Command, mention string, flags resolveFlags) error {
	ctx := cmd.Context()

	return withDeps(ctx, depsOptions{}, func(d *Deps) error {
		res, err := d.Resolve.Handle(ctx, handlers.ResolveRequest{
			Query:    mention,
			Kind:     flags.kind,
			SourceID: flags.sourceID,
			Symbols:  flags.symbols,
			Text:     flags.text,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(res)
		}
		displayResolution(res)
		return nil
	})
}
