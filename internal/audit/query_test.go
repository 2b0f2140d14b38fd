package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeQueryFixture records a mixed set of entries and returns the log path.
func writeQueryFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		{Engine: EngineNet, Subject: "https://api.example.com/v1", Decision: "allow", RuleID: "rule-001"},
		{Engine: EngineNet, Subject: "http://169.254.169.254/meta", Decision: "block", Reason: "suspicious host"},
		{Engine: EngineTool, Subject: "execute_command", Decision: "pending", RequestID: "req-1"},
		{Engine: EngineTool, Subject: "read_file", Decision: "auto_approved"},
		{Engine: EngineApproval, Subject: "req-1", Decision: "approved", Actor: "cli"},
		{Engine: EngineNet, Subject: "https://api.example.com/v2", Decision: "allow", RuleID: "rule-001"},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	l.Close()
	return path
}

func TestQueryNoFilterReturnsAll(t *testing.T) {
	path := writeQueryFixture(t)

	result, err := Query(path, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Summary.Total != 6 {
		t.Fatalf("expected 6 entries, got %d", result.Summary.Total)
	}
	if result.Summary.Decisions["allow"] != 2 {
		t.Errorf("expected 2 allow, got %d", result.Summary.Decisions["allow"])
	}
	if result.Summary.Engines[EngineNet] != 3 {
		t.Errorf("expected 3 net entries, got %d", result.Summary.Engines[EngineNet])
	}
	if result.Summary.First == "" || result.Summary.Last == "" {
		t.Error("expected summary timestamps to be set")
	}
}

func TestQueryFiltersByEngine(t *testing.T) {
	path := writeQueryFixture(t)

	result, err := Query(path, Filter{Engine: EngineTool})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 tool entries, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Engine != EngineTool {
			t.Errorf("expected only tool entries, got %q", e.Engine)
		}
	}
}

func TestQueryFiltersByDecision(t *testing.T) {
	path := writeQueryFixture(t)

	result, err := Query(path, Filter{Decision: "block"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 block entry, got %d", len(result.Entries))
	}
	if result.Entries[0].Reason != "suspicious host" {
		t.Errorf("expected suspicious host reason, got %q", result.Entries[0].Reason)
	}
}

func TestQueryLastKeepsMostRecent(t *testing.T) {
	path := writeQueryFixture(t)

	result, err := Query(path, Filter{Last: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Engine != EngineApproval {
		t.Errorf("expected second-to-last entry first, got %q", result.Entries[0].Engine)
	}
	if result.Entries[1].Subject != "https://api.example.com/v2" {
		t.Errorf("expected the final entry last, got %q", result.Entries[1].Subject)
	}
	if result.Summary.Total != 2 {
		t.Errorf("expected summary over kept entries, got %d", result.Summary.Total)
	}
}

func TestQueryTimeRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	stamps := []string{
		"2025-01-15T10:00:00.000Z",
		"2025-01-15T11:00:00.000Z",
		"2025-01-15T12:00:00.000Z",
	}
	for _, ts := range stamps {
		l.Record(Entry{Timestamp: ts, Engine: EngineNet, Subject: "https://example.com", Decision: "allow"})
	}
	l.Close()

	since, _ := time.Parse(TimestampFormat, "2025-01-15T10:30:00.000Z")
	until, _ := time.Parse(TimestampFormat, "2025-01-15T11:30:00.000Z")
	result, err := Query(path, Filter{Since: since, Until: until})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry in range, got %d", len(result.Entries))
	}
	if result.Entries[0].Timestamp != "2025-01-15T11:00:00.000Z" {
		t.Errorf("expected the 11:00 entry, got %s", result.Entries[0].Timestamp)
	}
}

func TestQuerySkipsMalformedLines(t *testing.T) {
	path := writeQueryFixture(t)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()

	result, err := Query(path, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Summary.Total != 6 {
		t.Fatalf("expected malformed line skipped, got %d entries", result.Summary.Total)
	}
}

func TestQueryMissingFile(t *testing.T) {
	_, err := Query(filepath.Join(t.TempDir(), "absent.jsonl"), Filter{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
