package notifier

import (
	"fmt"
	"strings"
	"time"
)

// Subject is the one-line title of a digest
func Subject(d Digest) string {
	switch {
	case d.FinalPick != nil:
		return fmt.Sprintf("ARGUS %s: %s %s (%.0f%%)", d.Date, d.FinalPick.Symbol, d.FinalPick.Recommendation, d.FinalPick.Confidence*100)
	case d.Halted:
		return fmt.Sprintf("ARGUS %s: run halted", d.Date)
	default:
		return fmt.Sprintf("ARGUS %s: no confident candidates", d.Date)
	}
}

// Text renders a digest as plain text, one fact per line
func Text(d Digest) string {
	var sb strings.Builder
	sb.WriteString(Subject(d))
	sb.WriteString("\n\n")

	if len(d.Picks) == 0 {
		sb.WriteString("No confident candidates today.\n")
	}
	for i, p := range d.Picks {
		fmt.Fprintf(&sb, "%d. %s %s confidence %.2f\n", i+1, p.Symbol, p.Recommendation, p.Confidence)
	}
	if len(d.Updated) > 0 {
		fmt.Fprintf(&sb, "\nParameters improved: %s\n", strings.Join(d.Updated, ", "))
	}
	if d.Halted {
		fmt.Fprintf(&sb, "\nPlan halted: %s\n", d.HaltReason)
	}
	if len(d.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, e := range d.Errors {
			fmt.Fprintf(&sb, "- %s: %s\n", e.Symbol, e.Error)
		}
	}
	fmt.Fprintf(&sb, "\nRun %s took %s.\n", d.RunID, d.Took.Round(time.Second))
	if d.Disclaimer != "" {
		sb.WriteString(d.Disclaimer)
		sb.WriteString("\n")
	}
	return sb.String()
}
