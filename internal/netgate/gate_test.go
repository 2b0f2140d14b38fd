package netgate

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/telemetry"
)

func TestEvaluateDefaultDeny(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: docs
    domain: docs.example.com
    action: allow
`), Options{})

	d := g.Evaluate("https://docs.example.com/guide")
	if !d.Allowed() {
		t.Errorf("expected allow, got %s (%s)", d.Verdict, d.Reason)
	}

	d = g.Evaluate("https://other.net/x")
	if d.Allowed() {
		t.Fatal("expected unmatched host to be blocked")
	}
	if d.Reason != "no matching rule" {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}

func TestEvaluateMalformedURL(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: any
    domain: "*"
    action: allow
`), Options{})

	for _, raw := range []string{"", "http://", "://x", "github.com/path", "  "} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			d := g.Evaluate(raw)
			if d.Verdict != model.VerdictBlock {
				t.Fatalf("expected block, got %s", d.Verdict)
			}
			if d.Reason != "malformed URL or missing host" {
				t.Errorf("unexpected reason: %s", d.Reason)
			}
		})
	}
}

func TestEvaluateHomoglyphHost(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: any
    domain: "*"
    action: allow
`), Options{})

	// Cyrillic о twice; an unconditional allow rule must not save it.
	d := g.Evaluate("https://gооgle.com/search")
	if d.Verdict != model.VerdictBlock {
		t.Fatalf("expected block, got %s", d.Verdict)
	}
	if !strings.Contains(d.Reason, "confusable") {
		t.Errorf("unexpected reason: %s", d.Reason)
	}

	// the same host hidden behind punycode
	d = g.Evaluate("https://xn--ggle-55da.com/")
	if d.Verdict != model.VerdictBlock {
		t.Errorf("expected punycode lookalike to be blocked, got %s (%s)", d.Verdict, d.Reason)
	}
}

func TestEvaluateSuspiciousHosts(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: any
    domain: "*"
    action: allow
`), Options{})

	urls := []string{
		"https://market.onion/listing",
		"http://localhost:3000/admin",
		"http://127.0.0.1/",
		"https://192.168.1.10/router",
		"https://10.0.0.8/internal",
		"http://169.254.169.254/latest/meta-data/",
	}
	for _, raw := range urls {
		t.Run(raw, func(t *testing.T) {
			if d := g.Evaluate(raw); d.Verdict != model.VerdictBlock {
				t.Errorf("expected block, got %s (%s)", d.Verdict, d.Reason)
			}
		})
	}
}

func TestEvaluateDisabledRuleBlocks(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: api
    domain: api.example.com
    action: allow
    enabled: false
  - id: any
    domain: "*"
    action: allow
`), Options{})

	d := g.Evaluate("https://api.example.com/v1")
	if d.Verdict != model.VerdictBlock {
		t.Fatalf("expected the disabled rule to block, got %s", d.Verdict)
	}
	if d.RuleID != "api" || !strings.Contains(d.Reason, "disabled") {
		t.Errorf("expected a disabled-rule block from api, got rule %q reason %q", d.RuleID, d.Reason)
	}

	// a host the disabled rule does not cover still reaches the catch-all
	if d := g.Evaluate("https://other.example.com/"); !d.Allowed() {
		t.Errorf("expected sibling host to be allowed, got %s (%s)", d.Verdict, d.Reason)
	}
}

func TestEvaluateBlockRuleReason(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: tracker
    domain: "*.tracker.example"
    action: block
    reason: telemetry endpoint
`), Options{})

	d := g.Evaluate("https://api.tracker.example/beacon")
	if d.Verdict != model.VerdictBlock || d.Reason != "telemetry endpoint" {
		t.Errorf("expected the rule reason to surface, got %s (%s)", d.Verdict, d.Reason)
	}
}

func TestEvaluateRateLimit(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: lim
    domain: api.example.com
    action: rate_limit
    rate_limit: 2
`), Options{})

	for i := 0; i < 2; i++ {
		if d := g.Evaluate("https://api.example.com/v1"); !d.Allowed() {
			t.Fatalf("request %d: expected allow, got %s (%s)", i+1, d.Verdict, d.Reason)
		}
	}

	d := g.Evaluate("https://api.example.com/v1")
	if d.Verdict != model.VerdictRateLimit {
		t.Fatalf("expected rate_limit verdict, got %s", d.Verdict)
	}
	if d.Allowed() {
		t.Error("rate-limited decisions must not count as allowed")
	}
	if !strings.Contains(d.Reason, "retry later") {
		t.Errorf("expected a retry-later reason, got %q", d.Reason)
	}
}

func TestEvaluatePortConstraint(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: p
    domain: api.example.com
    action: allow
    allowed_ports: [443, 8443]
`), Options{})

	if d := g.Evaluate("https://api.example.com/x"); !d.Allowed() {
		t.Errorf("expected implicit port to pass, got %s (%s)", d.Verdict, d.Reason)
	}
	if d := g.Evaluate("https://api.example.com:8443/x"); !d.Allowed() {
		t.Errorf("expected listed port to pass, got %s (%s)", d.Verdict, d.Reason)
	}
	d := g.Evaluate("https://api.example.com:9000/x")
	if d.Verdict != model.VerdictBlock || !strings.Contains(d.Reason, "port") {
		t.Errorf("expected port block, got %s (%s)", d.Verdict, d.Reason)
	}
}

func TestEvaluateRedirect(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: upgrade
    domain: github.com
    protocol: http
    action: redirect
    redirect_url: https://github.com
`), Options{})

	d := g.Evaluate("http://github.com/octocat")
	if !d.Allowed() {
		t.Fatalf("expected redirect to be an allow, got %s (%s)", d.Verdict, d.Reason)
	}
	if d.RedirectURL != "https://github.com" {
		t.Errorf("expected redirect_url to surface, got %q", d.RedirectURL)
	}
}

func TestEvaluateMaxSizeSurfaced(t *testing.T) {
	g := New(testStore(t, `
rules:
  - id: capped
    domain: cdn.example.com
    action: allow
    max_size_bytes: 1024
`), Options{})

	d := g.Evaluate("https://cdn.example.com/blob")
	if !d.Allowed() || d.MaxSize != 1024 {
		t.Errorf("expected allow with max size 1024, got %s max %d", d.Verdict, d.MaxSize)
	}
}

func TestEvaluateHistoryBounded(t *testing.T) {
	metrics := telemetry.New()
	g := New(testStore(t, `
rules:
  - id: any
    domain: "*"
    action: allow
`), Options{HistorySize: 3, Metrics: metrics})

	for i := 0; i < 5; i++ {
		g.Evaluate(fmt.Sprintf("https://h%d.example.com/", i))
	}

	hist := g.History(0)
	if len(hist) != 3 {
		t.Fatalf("expected 3 retained decisions, got %d", len(hist))
	}
	if hist[0].Host != "h2.example.com" {
		t.Errorf("expected oldest retained decision to be h2, got %s", hist[0].Host)
	}
	if got := g.History(2); len(got) != 2 || got[1].Host != "h4.example.com" {
		t.Errorf("unexpected tail: %+v", got)
	}
	if s := metrics.Snapshot(); s.Net.Total != 5 {
		t.Errorf("expected 5 recorded evaluations, got %d", s.Net.Total)
	}
}

func TestEvaluateSeesReloadedRules(t *testing.T) {
	store := testStore(t, `
rules:
  - id: any
    domain: "*"
    action: block
`)
	g := New(store, Options{})

	if d := g.Evaluate("https://release.example.com/"); d.Allowed() {
		t.Fatal("expected initial rules to block")
	}

	if err := os.WriteFile(store.Paths().Network, []byte(`
rules:
  - id: release
    domain: release.example.com
    action: allow
  - id: any
    domain: "*"
    action: block
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if d := g.Evaluate("https://release.example.com/"); !d.Allowed() {
		t.Errorf("expected reloaded rules to apply, got %s (%s)", d.Verdict, d.Reason)
	}
}

func TestEvaluateNeverPanics(t *testing.T) {
	g := New(nil, Options{}) // no store: evaluation hits a nil dereference inside

	d := g.Evaluate("https://example.com/")
	if d.Verdict != model.VerdictBlock {
		t.Fatalf("expected block, got %s", d.Verdict)
	}
	if !strings.Contains(d.Reason, "internal error") {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}
