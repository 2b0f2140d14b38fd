package sim

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DiffEntry represents one recorded decision whose verdict changed.
type DiffEntry struct {
	Timestamp  string `json:"ts"`
	URL        string `json:"url"`
	OldVerdict string `json:"old_verdict"`
	NewVerdict string `json:"new_verdict"`
	OldRule    string `json:"old_rule,omitempty"`
	NewRule    string `json:"new_rule,omitempty"`
	NewReason  string `json:"new_reason,omitempty"`
}

// Result holds the complete simulation output.
type Result struct {
	RulesDir         string      `json:"rules_dir"`
	TotalDecisions   int         `json:"total_decisions"`
	ChangedDecisions int         `json:"changed_decisions"`
	NewlyBlocked     int         `json:"newly_blocked"`
	NewlyAllowed     int         `json:"newly_allowed"`
	Changes          []DiffEntry `json:"changes"`
}

// FormatText renders the simulation result as human-readable text.
func FormatText(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Simulating %s against %d recorded network decisions...\n", r.RulesDir, r.TotalDecisions)

	if len(r.Changes) == 0 {
		b.WriteString("\nNo changes detected.\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, d := range r.Changes {
		ts := d.Timestamp
		if len(ts) >= 19 {
			// keep HH:MM:SS
			ts = ts[11:19]
		}
		u := d.URL
		if len(u) > 48 {
			u = u[:45] + "..."
		}
		fmt.Fprintf(&b, "  CHANGED  %s  %-48s %s → %s\n", ts, u, d.OldVerdict, d.NewVerdict)
	}

	fmt.Fprintf(&b, "\n%d of %d decisions changed.", r.ChangedDecisions, r.TotalDecisions)
	if r.NewlyBlocked > 0 || r.NewlyAllowed > 0 {
		fmt.Fprintf(&b, " %d newly blocked, %d newly allowed.", r.NewlyBlocked, r.NewlyAllowed)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders the simulation result as JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sim result: %w", err)
	}
	return string(data), nil
}
