package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

func newLookupCmd() *cobra.Command {
	var kind string
	var force bool

	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Look up a query with the external providers",
		Long: `Runs the provider cascade for a query. Results are cached per provider;
failed calls back off before they are retried.

Examples:
  newsground lookup "Jensen Huang" --kind person
  newsground lookup NVDA --kind symbol --force`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				out, err := d.Lookup.Handle(ctx, query, kind, force || d.Config.Lookup.Force)
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(out)
				}
				displayLookup(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Mention kind (org, person, symbol, ...)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass cached results")

	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and populate the lookup cache",
	}

	cmd.AddCommand(
		newCacheStatusCmd(),
		newCacheSeedCmd(),
		newCachePopulateCmd(),
		newCachePromoteCmd(),
	)

	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache contents, provider usage and backoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				report, err := d.Lookup.HandleStatus(ctx)
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(report)
				}
				displayCacheReport(report)
				return nil
			})
		},
	}
}

func displayCacheReport(report *entities.CacheReport) {
	if len(report.Counts) == 0 {
		fmt.Println("Cache is empty.")
	} else {
		fmt.Println("Cached entries:")
		for _, c := range report.Counts {
			fmt.Printf("  %-12s %-12s %d\n", c.Provider, c.Status, c.Count)
		}
	}

	if len(report.Usage) > 0 {
		fmt.Println("\nLive calls today:")
		for _, u := range report.Usage {
			fmt.Printf("  %-12s %d\n", u.Provider, u.Calls)
		}
	}

	fmt.Printf("\nIn backoff: %d", report.InBackoff)
	if report.NextRetryAt != nil {
		fmt.Printf(" (next retry in %s)", time.Until(*report.NextRetryAt).Round(time.Second))
	}
	fmt.Println()
	fmt.Printf("Pending: %d of %d seeded\n", report.Pending, report.PendingTotal)
}

func newCacheSeedCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Queue queries from a mention file for populate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				result, err := d.Lookup.HandleSeed(ctx, args[0], kind)
				if err != nil {
					return err
				}
				fmt.Printf("Read %d queries, %d newly queued\n", result.Read, result.Added)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Kind for every query (default: from file)")

	return cmd
}

func newCachePopulateCmd() *cobra.Command {
	var opts services.PopulateOptions

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Run the provider cascade for queued queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				if opts.Workers < 1 {
					opts.Workers = d.Config.Workers.Count
				}
				result, err := d.Lookup.HandlePopulate(ctx, opts)
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(result)
				}
				fmt.Printf("Processed %d: %d found, %d not found, %d deferred\n",
					result.Processed, result.Found, result.NotFound, result.Deferred)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", DefaultPopulate, "Maximum queries to process")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "n", 0, "Concurrent lookups (default: workers.count)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Bypass cached results")

	return cmd
}

func newCachePromoteCmd() *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:   "promote <provider> <query> <index>",
		Short: "Create an entity from a cached provider result",
		Long: `Creates an entity from one cached result and records its title as an
alias, so later mentions resolve locally.

Example:
  newsground cache promote wikipedia "Jensen Huang" 0 --type person`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[2])
			}

			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				e, err := d.Lookup.HandlePromote(ctx, handlers.PromoteRequest{
					Provider: args[0],
					Query:    args[1],
					Index:    index,
					Type:     entityType,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created %s %s (%s)\n", e.Type, e.Label(), e.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", string(entities.EntityOrg), "Entity type")

	return cmd
}
