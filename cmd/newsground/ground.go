package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/services"
)

type groundFlags struct {
	pattern            string
	recursive          bool
	workers            int
	queue              bool
	noEscalate         bool
	escalateCandidates bool
	force              bool
	output             string
}

func newGroundCmd() *cobra.Command {
	var flags groundFlags

	cmd := &cobra.Command{
		Use:   "ground <file|directory|glob>",
		Short: "Ground mention files to entities",
		Long: `Reads mentions from JSON, JSON Lines, CSV or text files, resolves each one
against the entity store and escalates unresolved mentions to the lookup
providers.

Examples:
  newsground ground mentions.jsonl
  newsground ground ./articles --pattern "*.jsonl" --recursive
  newsground ground "day-*.csv" --workers 8 --output outcomes.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGround(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.pattern, "pattern", "p", "*.jsonl", "File pattern for directories")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().IntVarP(&flags.workers, "workers", "n", 0, "Concurrent workers (default: workers.count)")
	cmd.Flags().BoolVar(&flags.queue, "queue", false, "Feed workers through the configured queue (memory or redis)")
	cmd.Flags().BoolVar(&flags.noEscalate, "no-escalate", false, "Resolve locally only")
	cmd.Flags().BoolVar(&flags.escalateCandidates, "escalate-candidates", false, "Also escalate mentions with only weak candidates")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Bypass cached lookup results")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write outcomes as JSON Lines to a file")

	return cmd
}

func runGround(cmd *cobra.Command, target string, flags groundFlags) (err error) {
	ctx := cmd.Context()

	opts := depsOptions{
		queue:              flags.queue,
		escalate:           !flags.noEscalate,
		escalateCandidates: flags.escalateCandidates,
		force:              flags.force,
		workers:            flags.workers,
	}

	var enc *json.Encoder
	if flags.output != "" {
		f, err := os.OpenFile(flags.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		enc = json.NewEncoder(f)
	} else if globalJSON {
		enc = json.NewEncoder(os.Stdout)
	}

	return withDeps(ctx, opts, func(d *Deps) error {
		var writeErr error
		sink := func(o services.GroundingOutcome) {
			if enc == nil {
				displayOutcome(o)
				return
			}
			if err := enc.Encode(o); err != nil && writeErr == nil {
				writeErr = err
			}
		}

		var result *handlers.GroundFilesResult
		var err error
		switch {
		case handlers.IsDirectory(target):
			result, err = d.Ground.HandleDirectory(ctx, target, flags.pattern, flags.recursive, sink)
		case handlers.IsGlobPattern(target):
			files, gerr := filepath.Glob(target)
			if gerr != nil {
				return fmt.Errorf("expanding pattern: %w", gerr)
			}
			if len(files) == 0 {
				return fmt.Errorf("no files match %s", target)
			}
			result, err = d.Ground.HandleFiles(ctx, files, sink)
		default:
			result, err = d.Ground.HandleFile(ctx, target, sink)
		}
		if err != nil {
			return err
		}
		if writeErr != nil {
			return fmt.Errorf("writing outcomes: %w", writeErr)
		}

		if !globalJSON || flags.output != "" {
			displayGroundSummary(result)
		}
		return nil
	})
}

func displayOutcome(o services.GroundingOutcome) {
	switch {
	case o.Error != "":
		fmt.Printf("  %-30q error: %s\n", o.Mention.SurfaceForm, o.Error)
	case o.Resolution != nil && o.Resolution.EntityID != "":
		fmt.Printf("  %-30q %s -> %s\n", o.Mention.SurfaceForm, o.Resolution.Status, o.Resolution.EntityID)
	case o.Lookup != nil:
		fmt.Printf("  %-30q lookup %s", o.Mention.SurfaceForm, o.Lookup.Status)
		if o.Lookup.Provider != "" {
			fmt.Printf(" via %s", o.Lookup.Provider)
		}
		fmt.Println()
	case o.Resolution != nil:
		fmt.Printf("  %-30q %s (%d candidates)\n", o.Mention.SurfaceForm, o.Resolution.Status, len(o.Resolution.Candidates))
	}
}

func displayGroundSummary(result *handlers.GroundFilesResult) {
	fmt.Println()
	for _, e := range result.Errors {
		fmt.Printf("Skipped: %v\n", e)
	}

	st := result.Stats
	fmt.Printf("Grounded %d mentions from %d files: %d resolved, %d ambiguous, %d escalated (%d found), %d failed\n",
		st.Total, len(result.Files), st.Resolved, st.Ambiguous, st.Escalated, st.LookedUp, st.Failed)

	kinds := make([]entities.MentionKind, 0, len(st.ByKind))
	for k := range st.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		ks := st.ByKind[k]
		fmt.Printf("  %-10s found %d, not found %d\n", k, ks.Found, ks.NotFound)
	}
}
