package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a list of run results as human-readable text.
func FormatText(results []*RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checking %d scenario %s...\n\n", len(results), plural("file", len(results)))

	var cases, passed, failedFiles int
	for _, r := range results {
		cases += r.Total
		passed += r.Passed
		if r.Failed > 0 {
			failedFiles++
		}
		writeResult(&b, r)
	}

	fmt.Fprintf(&b, "\n%d of %d cases passed.", passed, cases)
	if failedFiles > 0 {
		fmt.Fprintf(&b, " %d of %d scenarios failed.", failedFiles, len(results))
	}
	b.WriteString("\n")
	return b.String()
}

func writeResult(b *strings.Builder, r *RunResult) {
	if r.Failed == 0 {
		fmt.Fprintf(b, "  PASS  %s (%d/%d)\n", r.Name, r.Passed, r.Total)
		return
	}
	fmt.Fprintf(b, "  FAIL  %s (%d/%d)\n", r.Name, r.Passed, r.Total)
	for _, c := range r.Cases {
		if c.Passed {
			continue
		}
		subject := c.Subject
		if len(subject) > 48 {
			subject = subject[:45] + "..."
		}
		fmt.Fprintf(b, "    FAIL  case %d: %-48s expected %s, got %s\n",
			c.Index, subject, c.Expected, c.Actual)
	}
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// FormatJSON renders run results as JSON.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}
