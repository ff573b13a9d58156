package cli

import (
	"fmt"
	"strings"

	"github.com/covassure/claimflow/internal/audit"
)

// printTrail renders a claim's decision trail in causal order
func printTrail(tracker *audit.Tracker, claimID string) {
	records := tracker.ByClaim(claimID)
	if len(records) == 0 {
		fmt.Println("No decisions recorded.")
		return
	}

	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Decision Trail (%d decisions)\n", len(records))
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()

	for i, r := range records {
		marker := "✓"
		if !r.Success {
			marker = "✗"
		}
		fmt.Printf("%s [%d] %s · %s\n", marker, i+1, r.AgentName, r.Kind)
		fmt.Printf("    At:         %s\n", r.RecordedAt.Format("2006-01-02 15:04:05.000"))
		if r.Reasoning != "" {
			fmt.Printf("    Reasoning:  %s\n", r.Reasoning)
		}
		if r.Confidence != nil {
			fmt.Printf("    Confidence: %.2f\n", *r.Confidence)
		}
		if len(r.Dependencies) > 0 {
			fmt.Printf("    Built on:   %s\n", strings.Join(r.Dependencies, ", "))
		}
		if r.ErrorMessage != "" {
			fmt.Printf("    Error:      %s\n", r.ErrorMessage)
		}
		if verbose {
			if r.Context.Prompt != "" {
				fmt.Printf("    Prompt:     %s\n", firstLine(r.Context.Prompt))
			}
			if r.Context.RawResponse != "" {
				fmt.Printf("    Response:   %s\n", firstLine(r.Context.RawResponse))
			}
			for _, attempt := range r.Context.ParseAttempts {
				fmt.Printf("    Attempt:    %s\n", attempt)
			}
			for _, ev := range r.Context.Evidence {
				fmt.Printf("    Evidence:   %s\n", ev)
			}
		}
		fmt.Println()
	}

	if failed := tracker.Failed(claimID); len(failed) > 0 {
		fmt.Printf("⚠ %d decision(s) failed along the way\n", len(failed))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + " …"
	}
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
