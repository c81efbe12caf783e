package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Interactive mode for resolving mentions",
		Long:  "Enter mentions one per line and see how they resolve. Unresolved mentions can be looked up and promoted to entities.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{}, func(d *Deps) error {
				state := newWatchState(d.Resolve, d.Lookup, os.Stdout)
				return state.runInputLoop(ctx, os.Stdin)
			})
		},
	}
}

type watchState struct {
	resolve *handlers.ResolveHandler
	lookup  *handlers.LookupHandler
	out     io.Writer

	kind    string
	symbols []string

	lastMention string
	lastKind    entities.MentionKind
	lastLookup  *entities.LookupOutcome
}

func newWatchState(resolve *handlers.ResolveHandler, lookup *handlers.LookupHandler, out io.Writer) *watchState {
	return &watchState{resolve: resolve, lookup: lookup, out: out}
}

func (s *watchState) runInputLoop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "newsground interactive mode. Enter a mention per line, 'help' for commands.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		done, err := s.handleLine(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if done {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}

	return scanner.Err()
}

// handleLine runs a command or resolves the line as a mention. It reports
// whether the session should end.
func (s *watchState) handleLine(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true, nil
	case "help":
		s.showHelp()
		return false, nil
	case "kind":
		s.kind = arg
		fmt.Fprintf(s.out, "Kind: %s\n", entities.ParseMentionKind(arg))
		return false, nil
	case "symbols":
		s.symbols = nil
		for _, sym := range strings.Split(arg, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				s.symbols = append(s.symbols, sym)
			}
		}
		fmt.Fprintf(s.out, "Context symbols: %s\n", strings.Join(s.symbols, ", "))
		return false, nil
	case "lookup":
		return false, s.lookupLast(ctx)
	case "promote":
		return false, s.promote(ctx, arg)
	default:
		return false, s.resolveMention(ctx, line)
	}
}

func (s *watchState) showHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  kind <kind>            - Set the kind of following mentions")
	fmt.Fprintln(s.out, "  symbols <A,B>          - Set symbols mentioned alongside")
	fmt.Fprintln(s.out, "  lookup                 - Look up the last mention with the providers")
	fmt.Fprintln(s.out, "  promote <n> [type]     - Create an entity from result n of the last lookup")
	fmt.Fprintln(s.out, "  quit                   - Exit interactive mode")
	fmt.Fprintln(s.out, "  help                   - Show this help")
}

func (s *watchState) resolveMention(ctx context.Context, mention string) error {
	res, err := s.resolve.Handle(ctx, handlers.ResolveRequest{
		Query:   mention,
		Kind:    s.kind,
		Symbols: s.symbols,
	})
	if err != nil {
		return err
	}
	s.lastMention = mention
	s.lastKind = res.Mention.Kind
	s.lastLookup = nil

	fmt.Fprintf(s.out, "%s", res.Status)
	if res.EntityID != "" {
		fmt.Fprintf(s.out, " -> %s (%.2f)", res.EntityID, res.Confidence)
	}
	fmt.Fprintln(s.out)
	for i, c := range res.Candidates {
		if c.Entity != nil {
			fmt.Fprintf(s.out, "  %d. %s %s (%.2f)\n", i+1, shortID(c.Entity.ID), c.Entity.Label(), c.Confidence)
		}
	}
	if res.Status == entities.StatusUnresolved && s.lookup != nil {
		fmt.Fprintln(s.out, "Type 'lookup' to search the providers.")
	}
	return nil
}

func (s *watchState) lookupLast(ctx context.Context) error {
	if s.lookup == nil {
		return fmt.Errorf("lookup is not available")
	}
	if s.lastMention == "" {
		return fmt.Errorf("no mention to look up")
	}

	out, err := s.lookup.Handle(ctx, s.lastMention, string(s.lastKind), false)
	if err != nil {
		return err
	}
	s.lastLookup = out

	fmt.Fprintf(s.out, "%s", out.Status)
	if out.Provider != "" {
		fmt.Fprintf(s.out, " via %s", out.Provider)
	}
	fmt.Fprintln(s.out)
	if out.Entry != nil {
		for i, r := range out.Entry.Results {
			fmt.Fprintf(s.out, "  %d. %s %s\n", i, r.Title, r.URL)
		}
	}
	return nil
}

func (s *watchState) promote(ctx context.Context, arg string) error {
	if s.lastLookup == nil || s.lastLookup.Entry == nil {
		return fmt.Errorf("no lookup results to promote")
	}

	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return fmt.Errorf("usage: promote <n> [type]")
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("invalid result number %q", fields[0])
	}
	typ := defaultEntityType(s.lastKind)
	if len(fields) > 1 {
		typ = fields[1]
	}

	e, err := s.lookup.HandlePromote(ctx, handlers.PromoteRequest{
		Provider: s.lastLookup.Provider,
		Query:    s.lastLookup.Query,
		Index:    index,
		Type:     typ,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Created %s %s (%s)\n", e.Type, e.Label(), e.ID)
	return nil
}

// defaultEntityType picks the entity type a promoted result of kind gets.
func defaultEntityType(kind entities.MentionKind) string {
	if t, ok := kind.EntityType(); ok {
		return string(t)
	}
	return string(entities.EntityOrg)
}
