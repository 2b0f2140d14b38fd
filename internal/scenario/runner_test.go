package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/trustgate/internal/rules"
)

// testStore opens a store over an empty directory, which yields the
// built-in defaults without writing anything.
func testStore(t *testing.T) *rules.Store {
	t.Helper()
	dir := t.TempDir()
	return rules.Open(rules.Paths{
		Tools:   filepath.Join(dir, "tools.yaml"),
		Network: filepath.Join(dir, "network.yaml"),
		Secrets: filepath.Join(dir, "secrets.yaml"),
	}, nil)
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAllCasesPass(t *testing.T) {
	s := &Scenario{
		Name: "defaults hold",
		Cases: []Case{
			{Tool: "file_read", Params: map[string]any{"path": "/data/report.csv"}, Expect: "auto_approved"},
			{Tool: "file_delete", Params: map[string]any{"path": "/tmp/scratch"}, Expect: "pending"},
			{URL: "https://en.wikipedia.org/wiki/Go", Expect: "allow"},
			{URL: "https://blocked.invalid/", Expect: "block"},
		},
	}

	result := Run(s, testStore(t))
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 4 {
		t.Errorf("expected 4 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	s := &Scenario{
		Name: "wrong expectation",
		Cases: []Case{
			{URL: "https://blocked.invalid/", Expect: "allow"},
		},
	}

	result := Run(s, testStore(t))
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	c := result.Cases[0]
	if c.Actual != "block" {
		t.Errorf("expected actual block, got %q", c.Actual)
	}
	if c.Reason == "" {
		t.Error("expected a reason on the failed case")
	}
}

func TestExpectIsCaseInsensitive(t *testing.T) {
	s := &Scenario{
		Name: "shouting",
		Cases: []Case{
			{URL: "https://en.wikipedia.org/wiki/Go", Expect: " ALLOW "},
		},
	}

	result := Run(s, testStore(t))
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
}

func TestEmptyCaseFails(t *testing.T) {
	s := &Scenario{
		Name:  "empty case",
		Cases: []Case{{Expect: "allow"}},
	}

	result := Run(s, testStore(t))
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	if result.Cases[0].Actual != "invalid" {
		t.Errorf("expected invalid, got %q", result.Cases[0].Actual)
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "gate.yaml", `
name: "live rules"
cases:
  - tool: file_read
    params: {path: /data/report.csv}
    expect: auto_approved
  - url: https://en.wikipedia.org/wiki/Go
    expect: allow
  - url: https://blocked.invalid/
    expect: block
`)

	paths := rules.Paths{
		Tools:   filepath.Join(dir, "tools.yaml"),
		Network: filepath.Join(dir, "network.yaml"),
		Secrets: filepath.Join(dir, "secrets.yaml"),
	}
	result, err := LoadAndRun(path, paths)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.File != path {
		t.Errorf("expected file %q, got %q", path, result.File)
	}
	if result.Name != "live rules" {
		t.Errorf("unexpected name %q", result.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing scenario file")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad.yaml", "cases: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed scenario file")
	}
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "clean", Total: 2, Passed: 2},
		{
			Name: "broken", Total: 1, Failed: 1,
			Cases: []CaseResult{{
				Index: 1, Subject: "https://blocked.invalid/",
				Expected: "allow", Actual: "block",
			}},
		},
	}

	out := FormatText(results)
	if !strings.Contains(out, "PASS  clean (2/2)") {
		t.Errorf("expected pass line, got:\n%s", out)
	}
	if !strings.Contains(out, "FAIL  broken (0/1)") {
		t.Errorf("expected fail line, got:\n%s", out)
	}
	if !strings.Contains(out, "expected allow, got block") {
		t.Errorf("expected case detail, got:\n%s", out)
	}
	if !strings.Contains(out, "2 of 3 cases passed. 1 of 2 scenarios failed.") {
		t.Errorf("expected summary, got:\n%s", out)
	}
}
