package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects audit entries. Zero values mean no constraint.
type Filter struct {
	Engine   string
	Decision string
	Since    time.Time
	Until    time.Time
	Last     int // keep only the N most recent matches, 0 = all
}

// Summary holds decision counts and time bounds for a set of entries.
type Summary struct {
	Total     int            `json:"total"`
	Decisions map[string]int `json:"decisions,omitempty"`
	Engines   map[string]int `json:"engines,omitempty"`
	First     string         `json:"first_timestamp,omitempty"`
	Last      string         `json:"last_timestamp,omitempty"`
}

// QueryResult holds filtered entries and their summary.
type QueryResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Query reads the audit log and returns entries matching the filter,
// oldest first. Malformed lines are skipped; tampering is Verify's job.
func Query(path string, filter Filter) (*QueryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.match(entry) {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Last > 0 && len(entries) > filter.Last {
		entries = entries[len(entries)-filter.Last:]
	}

	result := &QueryResult{Entries: entries}
	for _, e := range entries {
		updateSummary(&result.Summary, e)
	}
	return result, nil
}

func (f Filter) match(entry Entry) bool {
	if f.Engine != "" && entry.Engine != f.Engine {
		return false
	}
	if f.Decision != "" && entry.Decision != f.Decision {
		return false
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		ts, err := time.Parse(TimestampFormat, entry.Timestamp)
		if err != nil {
			return false
		}
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && ts.After(f.Until) {
			return false
		}
	}
	return true
}

func updateSummary(s *Summary, entry Entry) {
	s.Total++

	if s.Decisions == nil {
		s.Decisions = make(map[string]int)
	}
	s.Decisions[entry.Decision]++

	if s.Engines == nil {
		s.Engines = make(map[string]int)
	}
	s.Engines[entry.Engine]++

	if s.First == "" {
		s.First = entry.Timestamp
	}
	s.Last = entry.Timestamp
}
