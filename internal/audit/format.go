package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

var hrule = strings.Repeat("─", 66)

// FormatTable renders a QueryResult as a human-readable text table.
func FormatTable(result *QueryResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %d entries | %s–%s UTC\n%s\n",
		result.Summary.Total,
		stamp(result.Summary.First, "2006-01-02 15:04:05"),
		stamp(result.Summary.Last, "15:04:05"),
		hrule)
	for _, e := range result.Entries {
		writeRow(&b, e)
	}
	fmt.Fprintf(&b, "%s\nSummary: %s | engines: %s\n",
		hrule, tally(result.Summary.Decisions), tally(result.Summary.Engines))
	return b.String()
}

// FormatJSON renders a QueryResult as indented JSON.
func FormatJSON(result *QueryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal query result: %w", err)
	}
	return string(data), nil
}

func writeRow(b *strings.Builder, e Entry) {
	fmt.Fprintf(b, "%-10s %-9s %-14s %-36s %s\n",
		stamp(e.Timestamp, "15:04:05"),
		e.Engine,
		strings.ToUpper(e.Decision),
		clip(e.Subject, 36),
		clip(e.Reason, 40))
}

// stamp reformats a log timestamp, passing it through untouched when it
// does not parse.
func stamp(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

// tally renders a count map as "n key, n key" in key order.
func tally(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d %s", m[k], k)
	}
	return b.String()
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
