package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

type exportFlags struct {
	format     string
	output     string
	entityType string
	limit      int
}

type exporter struct {
	handler *handlers.EntityHandler
	format  string
	output  string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entities and aliases to file",
		Long:  "Exports entities with their aliases and affiliations to JSON, CSV, or markdown format.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&flags.entityType, "type", "t", "", "Filter by entity type")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultExportLimit, "Maximum number of entities to export")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if !slices.Contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	ctx := cmd.Context()

	return withDeps(ctx, depsOptions{}, func(d *Deps) error {
		e := &exporter{
			handler: d.Entity,
			format:  flags.format,
			output:  flags.output,
		}

		details, err := e.fetchEntities(ctx, flags.entityType, flags.limit)
		if err != nil {
			return err
		}

		return e.export(details)
	})
}

func (e *exporter) fetchEntities(ctx context.Context, entityType string, limit int) ([]services.EntityDetails, error) {
	list, err := e.handler.HandleList(ctx, entityType, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	if len(list.Entities) == 0 {
		return nil, fmt.Errorf("no entities found to export")
	}

	details := make([]services.EntityDetails, 0, len(list.Entities))
	for _, ent := range list.Entities {
		d, err := e.handler.HandleShow(ctx, ent.ID)
		if err != nil {
			return nil, fmt.Errorf("loading entity %s: %w", ent.ID, err)
		}
		details = append(details, *d)
	}
	return details, nil
}

func (e *exporter) export(details []services.EntityDetails) (err error) {
	var w io.Writer
	var f *os.File

	if e.output != "" {
		f, err = os.OpenFile(e.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	} else {
		w = os.Stdout
	}

	if err := e.formatEntities(w, details); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if e.output != "" {
		fmt.Printf("Exported %d entities to %s\n", len(details), e.output)
	}

	return nil
}

func (e *exporter) formatEntities(w io.Writer, details []services.EntityDetails) error {
	switch e.format {
	case "json":
		return formatJSON(w, details)
	case "csv":
		return formatCSV(w, details)
	case "markdown":
		return formatMarkdown(w, details)
	default:
		return fmt.Errorf("unknown format: %s", e.format)
	}
}

func formatJSON(w io.Writer, details []services.EntityDetails) error {
	if details == nil {
		details = []services.EntityDetails{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(details)
}

// formatCSV writes one row per alias.
func formatCSV(w io.Writer, details []services.EntityDetails) error {
	writer := csv.NewWriter(w)

	header := []string{"entity_id", "entity_type", "name", "alias_text", "alias_type", "primary_exchange", "is_primary", "source", "confidence"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, d := range details {
		for _, a := range d.Aliases {
			row := []string{
				d.Entity.ID,
				string(d.Entity.Type),
				d.Entity.Label(),
				a.Text,
				string(a.Type),
				a.PrimaryExchange,
				fmt.Sprintf("%t", a.IsPrimary),
				a.Source,
				fmt.Sprintf("%.2f", a.Confidence),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatMarkdown(w io.Writer, details []services.EntityDetails) error {
	if _, err := fmt.Fprintf(w, "# Exported Entities\n\nTotal: %d entities\n\n", len(details)); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "| Type | Name | Symbols | Aliases | Roles |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "|------|------|---------|---------|-------|\n"); err != nil {
		return err
	}

	for _, d := range details {
		var symbols, names []string
		for _, a := range d.Aliases {
			if a.Type == entities.AliasSymbol {
				symbols = append(symbols, a.Text)
			} else if a.Text != d.Entity.Label() {
				names = append(names, a.Text)
			}
		}
		var roles []string
		for _, a := range d.Affiliations {
			roles = append(roles, a.RoleTitle)
		}

		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			d.Entity.Type,
			escapeMarkdown(d.Entity.Label()),
			escapeMarkdown(strings.Join(symbols, ", ")),
			escapeMarkdown(strings.Join(names, ", ")),
			escapeMarkdown(strings.Join(roles, ", ")),
		); err != nil {
			return err
		}
	}

	return nil
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Format(time.DateOnly)
}
