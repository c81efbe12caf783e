package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/services"
)

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Manage entities",
	}

	cmd.AddCommand(
		newEntitiesListCmd(),
		newEntitiesShowCmd(),
		newEntitiesCreateCmd(),
		newEntitiesDeleteCmd(),
		newEntitiesAuditCmd(),
	)

	return cmd
}

func newEntitiesListCmd() *cobra.Command {
	var searchQuery string
	var entityType string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Long: `List entities in the store.

Use --search to filter by name.

Examples:
  newsground entities list
  newsground entities list --type person
  newsground entities list --search "apple"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				var result *handlers.EntityListResult
				var err error
				if searchQuery != "" {
					result, err = d.Entity.HandleSearch(ctx, searchQuery, limit)
				} else {
					result, err = d.Entity.HandleList(ctx, entityType, limit, offset)
				}
				if err != nil {
					return fmt.Errorf("listing entities: %w", err)
				}

				if globalJSON {
					return printJSON(result)
				}
				if len(result.Entities) == 0 {
					fmt.Println("No entities found.")
					return nil
				}

				fmt.Printf("Entities (%d total):\n", result.Total)
				fmt.Println()
				for _, e := range result.Entities {
					fmt.Printf("  %-36s %-10s %s\n", e.ID, e.Type, e.Label())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&searchQuery, "search", "", "Search entities by name")
	cmd.Flags().StringVarP(&entityType, "type", "t", "", "Filter by entity type")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultListLimit, "Maximum number of entities to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entities to skip")

	return cmd
}

func newEntitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show an entity with its aliases and affiliations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				details, err := d.Entity.HandleShow(ctx, args[0])
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(details)
				}
				displayDetails(details)
				return nil
			})
		},
	}
}

func displayDetails(d *services.EntityDetails) {
	e := d.Entity
	fmt.Printf("ID:   %s\n", e.ID)
	fmt.Printf("Type: %s\n", e.Type)
	fmt.Printf("Name: %s\n", e.Label())
	if e.CanonicalFull != "" && e.CanonicalFull != e.Label() {
		fmt.Printf("Full: %s\n", e.CanonicalFull)
	}
	if e.Profile != nil {
		if e.Profile.Website != "" {
			fmt.Printf("Web:  %s\n", e.Profile.Website)
		}
		if e.Profile.Summary != "" {
			fmt.Printf("      %s\n", truncate(e.Profile.Summary, 200))
		}
	}

	if len(d.Aliases) > 0 {
		fmt.Printf("\nAliases (%d):\n", len(d.Aliases))
		for _, a := range d.Aliases {
			primary := ""
			if a.IsPrimary {
				primary = " primary"
			}
			fmt.Printf("  %-36s %-14s %s%s [%s]\n", a.ID, a.Type, a.Text, primary, a.Source)
		}
	}

	if len(d.Affiliations) > 0 {
		fmt.Printf("\nAffiliations (%d):\n", len(d.Affiliations))
		for _, a := range d.Affiliations {
			window := "open"
			if a.ValidFrom != nil || a.ValidTo != nil {
				window = formatDate(a.ValidFrom) + " .. " + formatDate(a.ValidTo)
			}
			fmt.Printf("  %-24s person %s org %s (%s)\n", a.RoleTitle, shortID(a.PersonID), shortID(a.OrgID), window)
		}
	}
}

func newEntitiesCreateCmd() *cobra.Command {
	var req handlers.CreateEntityRequest

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an entity, or update the one with the same identity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = strings.Join(args, " ")
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				e, err := d.Entity.HandleCreate(ctx, req)
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(e)
				}
				fmt.Printf("Entity %s: %s (%s)\n", e.ID, e.Label(), e.Type)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Type, "type", "t", "org", "Entity type (org, person, product, fund, regulator)")
	cmd.Flags().StringVar(&req.Summary, "summary", "", "Profile summary")
	cmd.Flags().StringVar(&req.Website, "website", "", "Profile website")

	return cmd
}

func newEntitiesDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "Delete an entity with its aliases and affiliations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				details, err := d.Entity.HandleShow(ctx, args[0])
				if err != nil {
					return err
				}

				prompt := fmt.Sprintf("Delete %s with %d aliases and %d affiliations?",
					details.Entity.Label(), len(details.Aliases), len(details.Affiliations))
				if !force && !confirmAction(prompt) {
					fmt.Println("Cancelled.")
					return nil
				}

				if err := d.Entity.HandleDelete(ctx, args[0]); err != nil {
					return fmt.Errorf("deleting entity: %w", err)
				}
				fmt.Printf("Deleted entity: %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newEntitiesAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <entity-id>",
		Short: "Show the change history of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				log, err := d.Entity.HandleAudit(ctx, args[0])
				if err != nil {
					return err
				}
				if globalJSON {
					return printJSON(log)
				}
				if len(log) == 0 {
					fmt.Println("No history.")
					return nil
				}
				for _, e := range log {
					fmt.Printf("  %s  %-22s %v\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Details)
				}
				return nil
			})
		},
	}
}

func newAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage entity aliases",
	}

	var req handlers.AddAliasRequest
	addCmd := &cobra.Command{
		Use:   "add <entity-id> <text>",
		Short: "Add an alias to an entity",
		Long: `Adds a name variant or symbol to an entity.

Examples:
  newsground alias add <id> "Apple Computer" --type former_name
  newsground alias add <id> AAPL --type symbol --exchange NASDAQ --primary`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.EntityID, req.Text = args[0], args[1]
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				a, err := d.Entity.HandleAddAlias(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Alias %s: %s (%s)\n", a.ID, a.Text, a.Type)
				return nil
			})
		},
	}
	addCmd.Flags().StringVarP(&req.Type, "type", "t", "display_name", "Alias type")
	addCmd.Flags().StringVar(&req.Exchange, "exchange", "", "Primary exchange of a symbol")
	addCmd.Flags().BoolVar(&req.Primary, "primary", false, "Mark as the primary symbol")
	addCmd.Flags().StringVarP(&req.Source, "source", "s", "", "Provenance (default: manual)")
	addCmd.Flags().Float64Var(&req.Confidence, "confidence", 0, "Confidence in [0,1] (default: 1)")

	deleteCmd := &cobra.Command{
		Use:   "delete <entity-id> <alias-id>",
		Short: "Remove an alias from an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				if err := d.Entity.HandleDeleteAlias(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Deleted alias: %s\n", args[1])
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, deleteCmd)
	return cmd
}

func newAffiliateCmd() *cobra.Command {
	var req handlers.AffiliateRequest

	cmd := &cobra.Command{
		Use:   "affiliate <person-id> <org-id> <title>",
		Short: "Record a person's role at an organization",
		Long: `Records a role. With --supersede, the person's open roles at the
organization end where the new one starts.

Example:
  newsground affiliate <person> <org> CEO --from 2011-08-24 --supersede`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PersonID, req.OrgID, req.Title = args[0], args[1], args[2]
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				a, err := d.Affiliation.HandleAffiliate(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Affiliation %s: %s from %s\n", a.ID, a.RoleTitle, formatDate(a.ValidFrom))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "", "Start date (YYYY-MM-DD or YYYY)")
	cmd.Flags().StringVar(&req.To, "to", "", "End date (YYYY-MM-DD or YYYY)")
	cmd.Flags().StringVarP(&req.Source, "source", "s", "", "Provenance (default: manual)")
	cmd.Flags().Float64Var(&req.Confidence, "confidence", 0, "Confidence in [0,1] (default: 1)")
	cmd.Flags().BoolVar(&req.Supersede, "supersede", false, "Close open roles at the organization")

	return cmd
}

func confirmAction(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
