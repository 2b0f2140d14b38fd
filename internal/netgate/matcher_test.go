package netgate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/trustgate/internal/rules"
)

func testStore(t *testing.T, networkYAML string) *rules.Store {
	t.Helper()
	dir := t.TempDir()
	paths := rules.Paths{
		Tools:   filepath.Join(dir, "tools.yaml"),
		Network: filepath.Join(dir, "network.yaml"),
		Secrets: filepath.Join(dir, "secrets.yaml"),
	}
	if err := os.WriteFile(paths.Network, []byte(networkYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return rules.Open(paths, nil)
}

const matcherRules = `
rules:
  - id: exact-http
    domain: github.com
    protocol: http
    action: redirect
    redirect_url: https://github.com
  - id: subs
    domain: "*.github.com"
    action: allow
  - id: tlds
    domain: "example.*"
    action: allow
  - id: first-any
    domain: "*"
    action: block
  - id: second-any
    domain: "*"
    action: allow
`

func TestMatchPrecedence(t *testing.T) {
	set := testStore(t, matcherRules).Snapshot().Network

	tests := []struct {
		host     string
		protocol string
		want     string
	}{
		{"github.com", "http", "exact-http"},
		// the exact rule is protocol-bound, so https falls to the subdomain tier
		{"github.com", "https", "subs"},
		{"api.github.com", "https", "subs"},
		{"deep.api.github.com", "wss", "subs"},
		{"evilgithub.com", "https", "first-any"},
		{"example.org", "https", "tlds"},
		{"example.com", "http", "tlds"},
		{"examples.com", "https", "first-any"},
		{"unrelated.net", "https", "first-any"},
		// literal IPs skip both wildcard tiers
		{"192.168.1.10", "https", "first-any"},
		// normalization: case and trailing dot
		{"API.GitHub.Com.", "https", "subs"},
	}
	for _, tt := range tests {
		t.Run(tt.host+"/"+tt.protocol, func(t *testing.T) {
			r := Match(set, tt.host, tt.protocol)
			if r == nil {
				t.Fatalf("expected rule %s, got NoMatch", tt.want)
			}
			if r.ID != tt.want {
				t.Errorf("expected rule %s, got %s", tt.want, r.ID)
			}
		})
	}
}

func TestMatchExactIPRule(t *testing.T) {
	set := testStore(t, `
rules:
  - id: dns
    domain: 8.8.8.8
    action: allow
`).Snapshot().Network

	r := Match(set, "8.8.8.8", "https")
	if r == nil || r.ID != "dns" {
		t.Fatalf("expected exact IP rule to match, got %v", r)
	}
}

func TestMatchNoMatch(t *testing.T) {
	set := testStore(t, `
rules:
  - id: only
    domain: docs.example.com
    action: allow
`).Snapshot().Network

	if r := Match(set, "other.net", "https"); r != nil {
		t.Errorf("expected NoMatch, got %s", r.ID)
	}
	if r := Match(set, "", "https"); r != nil {
		t.Errorf("expected NoMatch for empty host, got %s", r.ID)
	}
	if r := Match(nil, "docs.example.com", "https"); r != nil {
		t.Errorf("expected NoMatch against empty set, got %s", r.ID)
	}
}

func TestMatchDisabledRulesStillMatch(t *testing.T) {
	set := testStore(t, `
rules:
  - id: off
    domain: api.example.com
    action: allow
    enabled: false
  - id: any
    domain: "*"
    action: allow
`).Snapshot().Network

	r := Match(set, "api.example.com", "https")
	if r == nil || r.ID != "off" {
		t.Fatalf("expected the disabled rule to match, got %v", r)
	}
	if r.Enabled {
		t.Error("expected the matched rule to carry enabled=false")
	}
}

func TestMatchSubdomainBoundary(t *testing.T) {
	set := testStore(t, `
rules:
  - id: subs
    domain: "*.example.com"
    action: allow
`).Snapshot().Network

	if r := Match(set, "example.com", "https"); r == nil {
		t.Error("expected *.example.com to match the bare base domain")
	}
	if r := Match(set, "a.b.example.com", "https"); r == nil {
		t.Error("expected *.example.com to match nested subdomains")
	}
	if r := Match(set, "notexample.com", "https"); r != nil {
		t.Error("expected the label boundary to hold")
	}
}
