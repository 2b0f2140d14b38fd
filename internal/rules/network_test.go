package rules

import (
	"testing"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/trustgate/internal/model"
)

func TestCompileNetworkRuleKinds(t *testing.T) {
	tests := []struct {
		domain string
		kind   MatchKind
		base   string
	}{
		{"github.com", MatchExact, "github.com"},
		{"*.github.com", MatchSubdomains, "github.com"},
		{"example.*", MatchTLDs, "example"},
		{"*", MatchAny, ""},
		{"GitHub.COM", MatchExact, "github.com"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			r, err := compileNetworkRule(NetworkRule{ID: "r", Domain: tt.domain, Action: "allow"}, 0)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if r.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, r.Kind)
			}
			if r.Base != tt.base {
				t.Errorf("expected base %q, got %q", tt.base, r.Base)
			}
		})
	}
}

func TestCompileNetworkRuleRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  NetworkRule
	}{
		{"empty domain", NetworkRule{ID: "r", Action: "allow"}},
		{"unknown action", NetworkRule{ID: "r", Domain: "a.com", Action: "observe"}},
		{"redirect without url", NetworkRule{ID: "r", Domain: "a.com", Action: "redirect"}},
		{"rate_limit without limit", NetworkRule{ID: "r", Domain: "a.com", Action: "rate_limit"}},
		{"negative rate", NetworkRule{ID: "r", Domain: "a.com", Action: "allow", RateLimit: -1}},
		{"negative size", NetworkRule{ID: "r", Domain: "a.com", Action: "allow", MaxSizeBytes: -1}},
		{"port zero", NetworkRule{ID: "r", Domain: "a.com", Action: "allow", AllowedPorts: []int{0}}},
		{"port too high", NetworkRule{ID: "r", Domain: "a.com", Action: "allow", AllowedPorts: []int{70000}}},
		{"unknown protocol", NetworkRule{ID: "r", Domain: "a.com", Protocol: "gopher", Action: "allow"}},
		{"interior wildcard", NetworkRule{ID: "r", Domain: "api.*.com", Action: "allow"}},
		{"double wildcard", NetworkRule{ID: "r", Domain: "*.*", Action: "allow"}},
		{"bare prefix wildcard", NetworkRule{ID: "r", Domain: "*.", Action: "allow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := compileNetworkRule(tt.raw, 0); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestCompileNetworkRuleEnabledDefault(t *testing.T) {
	r, err := compileNetworkRule(NetworkRule{ID: "r", Domain: "a.com", Action: "allow"}, 0)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !r.Enabled {
		t.Error("expected rules to be enabled when the flag is omitted")
	}

	off := false
	r, err = compileNetworkRule(NetworkRule{ID: "r", Domain: "a.com", Action: "allow", Enabled: &off}, 0)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if r.Enabled {
		t.Error("expected enabled=false to stick")
	}
}

func TestCompileNetworkSynthesizesIDs(t *testing.T) {
	raw := []NetworkRule{
		{Domain: "a.com", Action: "allow"},
		{ID: "named", Domain: "b.com", Action: "block"},
		{Domain: "c.com", Action: "allow"},
	}
	out := compileNetwork(raw, zap.NewNop())
	if len(out) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(out))
	}
	if out[0].ID != "rule-001" || out[2].ID != "rule-003" {
		t.Errorf("expected positional IDs, got %q and %q", out[0].ID, out[2].ID)
	}
	if raw[0].ID != "rule-001" {
		t.Error("expected the synthesized ID to be written back to the document")
	}
	if out[1].ID != "named" {
		t.Errorf("expected explicit ID to be kept, got %q", out[1].ID)
	}
}

func TestCompileNetworkSkipsDuplicatesAndInvalid(t *testing.T) {
	out := compileNetwork([]NetworkRule{
		{ID: "dup", Domain: "a.com", Action: "allow"},
		{ID: "dup", Domain: "b.com", Action: "block"},
		{ID: "broken", Domain: "c.com", Action: "redirect"},
	}, zap.NewNop())

	if len(out) != 1 {
		t.Fatalf("expected 1 surviving rule, got %d", len(out))
	}
	if out[0].Domain != "a.com" {
		t.Errorf("expected the first dup to win, got %s", out[0].Domain)
	}
}

func TestCompiledRuleIsIP(t *testing.T) {
	ip, err := compileNetworkRule(NetworkRule{ID: "r", Domain: "192.168.1.10", Action: "allow"}, 0)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !ip.IsIP() {
		t.Error("expected literal address to report IsIP")
	}
	host, err := compileNetworkRule(NetworkRule{ID: "r", Domain: "example.com", Action: "allow"}, 0)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if host.IsIP() {
		t.Error("expected hostname to not report IsIP")
	}
}

func TestDefaultNetworkRulesCompile(t *testing.T) {
	out := compileNetwork(DefaultNetworkRules(), zap.NewNop())
	if len(out) != len(DefaultNetworkRules()) {
		t.Fatalf("expected every default rule to compile, got %d of %d", len(out), len(DefaultNetworkRules()))
	}

	last := out[len(out)-1]
	if last.Kind != MatchAny || last.Action != model.ActionBlock {
		t.Error("expected the final default rule to be a catch-all block")
	}
}

func TestDefaultNetworkYAMLMatchesDefaults(t *testing.T) {
	var doc networkDoc
	if err := yaml.Unmarshal([]byte(DefaultNetworkYAML()), &doc); err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if len(doc.Rules) != len(DefaultNetworkRules()) {
		t.Fatalf("template has %d rules, defaults have %d", len(doc.Rules), len(DefaultNetworkRules()))
	}
	out := compileNetwork(doc.Rules, zap.NewNop())
	if len(out) != len(doc.Rules) {
		t.Errorf("expected every template rule to compile, got %d of %d", len(out), len(doc.Rules))
	}
}
