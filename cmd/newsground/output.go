package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayResolution(res *entities.Resolution) {
	fmt.Printf("%q [%s]: %s", res.Mention.SurfaceForm, res.Mention.Kind, res.Status)
	if res.EntityID != "" {
		fmt.Printf(" -> %s (tier %d, confidence %.2f)", res.EntityID, res.Tier, res.Confidence)
	}
	fmt.Println()
	for i, c := range res.Candidates {
		if c.Entity == nil {
			continue
		}
		fmt.Printf("  %d. %-10s %-40s tier %d  %.2f\n", i+1, shortID(c.Entity.ID), c.Entity.Label(), c.Tier, c.Confidence)
	}
}

func displayLookup(out *entities.LookupOutcome) {
	fmt.Printf("%q [%s]: %s", out.Query, out.Kind, out.Status)
	if out.Provider != "" {
		fmt.Printf(" via %s", out.Provider)
		if out.Cached {
			fmt.Print(" (cached)")
		}
	}
	if out.Reason != "" {
		fmt.Printf(" (%s)", out.Reason)
	}
	fmt.Println()
	if out.RetryAfter != nil {
		fmt.Printf("  retry after %s\n", out.RetryAfter.Format("2006-01-02 15:04 MST"))
	}

	var attempts []string
	for _, a := range out.Attempts {
		attempts = append(attempts, a.Provider+"="+a.Action)
	}
	if len(attempts) > 0 {
		fmt.Printf("  attempts: %s\n", strings.Join(attempts, ", "))
	}

	if out.Entry == nil {
		return
	}
	for i, r := range out.Entry.Results {
		fmt.Printf("  %d. %s\n", i, r.Title)
		if r.URL != "" {
			fmt.Printf("     %s\n", r.URL)
		}
		if r.Snippet != "" {
			fmt.Printf("     %s\n", truncate(r.Snippet, 160))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
