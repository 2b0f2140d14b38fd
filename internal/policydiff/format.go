package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *Result) string {
	if !r.HasChanges {
		return fmt.Sprintf("Rule diff: %s → %s\n\nNo changes detected.\n", r.OldDir, r.NewDir)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rule diff: %s → %s\n", r.OldDir, r.NewDir)
	writeSection(&b, "Tool policies", r.Tools)
	writeSection(&b, "Network rules", r.Network)
	writeSection(&b, "Secret patterns", r.Secrets)
	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func writeSection(b *strings.Builder, title string, changes []RuleChange) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s:\n", title)
	for _, rc := range changes {
		switch rc.Type {
		case "added":
			fmt.Fprintf(b, "    + %s\n", rc.Rule)
		case "removed":
			fmt.Fprintf(b, "    - %s\n", rc.Rule)
		case "changed":
			fmt.Fprintf(b, "    ~ %s\n", rc.Rule)
		}
	}
}
