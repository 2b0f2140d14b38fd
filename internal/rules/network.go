package rules

import (
	"fmt"
	"net/netip"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
)

// NetworkRule is the raw, YAML-shaped form of one egress rule.
type NetworkRule struct {
	ID           string `yaml:"id,omitempty"`
	Domain       string `yaml:"domain"`
	Protocol     string `yaml:"protocol,omitempty"` // http | https | ws | wss; empty matches any
	Action       string `yaml:"action"`             // allow | block | redirect | rate_limit
	RedirectURL  string `yaml:"redirect_url,omitempty"`
	RateLimit    int    `yaml:"rate_limit,omitempty"` // requests per minute, rate_limit action only
	MaxSizeBytes int64  `yaml:"max_size_bytes,omitempty"`
	AllowedPorts []int  `yaml:"allowed_ports,omitempty"`
	Reason       string `yaml:"reason,omitempty"`
	Enabled      *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// networkDoc is the on-disk shape of the network rule document.
type networkDoc struct {
	Rules []NetworkRule `yaml:"rules"`
}

// MatchKind classifies how a rule's domain field matches hosts, in
// precedence order: exact beats subdomain wildcard beats TLD wildcard
// beats the catch-all.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchSubdomains
	MatchTLDs
	MatchAny
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchSubdomains:
		return "subdomains"
	case MatchTLDs:
		return "tlds"
	case MatchAny:
		return "any"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// CompiledRule is a validated NetworkRule ready for matching. Fields are
// copied flat rather than embedding the raw rule so Action carries the
// parsed type. Order preserves the rule's position in the document and
// breaks precedence ties.
type CompiledRule struct {
	ID           string
	Domain       string
	Base         string // domain with any wildcard label stripped
	Kind         MatchKind
	Protocol     string
	Action       model.RuleAction
	RedirectURL  string
	RateLimit    int
	MaxSizeBytes int64
	AllowedPorts []int
	Reason       string
	Enabled      bool
	Order        int
}

// compileNetworkRule validates one raw rule. A rule that fails to compile
// is dropped from the snapshot; with the default catch-all also dropped or
// absent, unmatched hosts are blocked anyway.
func compileNetworkRule(raw NetworkRule, order int) (*CompiledRule, error) {
	domain := strings.ToLower(strings.TrimSpace(raw.Domain))
	if domain == "" {
		return nil, fmt.Errorf("network rule %s: empty domain", raw.ID)
	}

	if !model.ValidRuleAction(raw.Action) {
		return nil, fmt.Errorf("network rule %s: unknown action %q", raw.ID, raw.Action)
	}
	action := model.RuleAction(raw.Action)

	if action == model.ActionRedirect && strings.TrimSpace(raw.RedirectURL) == "" {
		return nil, fmt.Errorf("network rule %s: redirect without redirect_url", raw.ID)
	}
	if action == model.ActionRateLimit && raw.RateLimit <= 0 {
		return nil, fmt.Errorf("network rule %s: rate_limit without a positive rate_limit", raw.ID)
	}
	if raw.RateLimit < 0 {
		return nil, fmt.Errorf("network rule %s: negative rate_limit", raw.ID)
	}
	if raw.MaxSizeBytes < 0 {
		return nil, fmt.Errorf("network rule %s: negative max_size_bytes", raw.ID)
	}
	for _, p := range raw.AllowedPorts {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("network rule %s: port %d out of range", raw.ID, p)
		}
	}

	switch raw.Protocol {
	case "", "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("network rule %s: unknown protocol %q", raw.ID, raw.Protocol)
	}

	r := &CompiledRule{
		ID:           raw.ID,
		Domain:       domain,
		Protocol:     raw.Protocol,
		Action:       action,
		RedirectURL:  raw.RedirectURL,
		RateLimit:    raw.RateLimit,
		MaxSizeBytes: raw.MaxSizeBytes,
		AllowedPorts: raw.AllowedPorts,
		Reason:       raw.Reason,
		Enabled:      raw.Enabled == nil || *raw.Enabled,
		Order:        order,
	}

	switch {
	case domain == "*":
		r.Kind = MatchAny
		r.Base = ""
	case strings.HasPrefix(domain, "*."):
		base := strings.TrimPrefix(domain, "*.")
		if base == "" || strings.Contains(base, "*") {
			return nil, fmt.Errorf("network rule %s: malformed wildcard %q", raw.ID, raw.Domain)
		}
		r.Kind = MatchSubdomains
		r.Base = base
	case strings.HasSuffix(domain, ".*"):
		base := strings.TrimSuffix(domain, ".*")
		if base == "" || strings.Contains(base, "*") {
			return nil, fmt.Errorf("network rule %s: malformed wildcard %q", raw.ID, raw.Domain)
		}
		r.Kind = MatchTLDs
		r.Base = base
	case strings.Contains(domain, "*"):
		return nil, fmt.Errorf("network rule %s: interior wildcard %q", raw.ID, raw.Domain)
	default:
		r.Kind = MatchExact
		r.Base = domain
	}

	return r, nil
}

// IsIP reports whether the rule's domain parses as a literal address.
// Literal addresses never participate in subdomain or TLD wildcards.
func (r *CompiledRule) IsIP() bool {
	_, err := netip.ParseAddr(r.Domain)
	return err == nil
}

// compileNetwork compiles every rule in document order, dropping failures
// and synthesizing stable IDs for rules that omit one. The raw slice is
// updated in place so a synthesized ID survives persistence.
func compileNetwork(raw []NetworkRule, logger *zap.Logger) []*CompiledRule {
	out := make([]*CompiledRule, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i := range raw {
		if strings.TrimSpace(raw[i].ID) == "" {
			raw[i].ID = fmt.Sprintf("rule-%03d", i+1)
		}
		if seen[raw[i].ID] {
			logger.Warn("duplicate network rule skipped", zap.String("rule", raw[i].ID))
			continue
		}
		r, err := compileNetworkRule(raw[i], i)
		if err != nil {
			logger.Warn("network rule disabled", zap.Error(err))
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// DefaultNetworkRules returns the built-in egress rules used when no
// network document exists. The trailing catch-all blocks everything the
// explicit rules do not name.
func DefaultNetworkRules() []NetworkRule {
	return []NetworkRule{
		{
			ID:          "github-https-upgrade",
			Domain:      "github.com",
			Protocol:    "http",
			Action:      "redirect",
			RedirectURL: "https://github.com",
			Reason:      "plain HTTP to GitHub is upgraded",
		},
		{
			ID:           "github",
			Domain:       "*.github.com",
			Protocol:     "https",
			Action:       "rate_limit",
			RateLimit:    120,
			MaxSizeBytes: 10 << 20,
			Reason:       "GitHub API and web",
		},
		{
			ID:           "github-raw",
			Domain:       "*.githubusercontent.com",
			Protocol:     "https",
			Action:       "allow",
			MaxSizeBytes: 10 << 20,
			Reason:       "raw file hosting",
		},
		{
			ID:       "golang",
			Domain:   "*.golang.org",
			Protocol: "https",
			Action:   "allow",
			Reason:   "Go module and doc hosting",
		},
		{
			ID:        "pypi",
			Domain:    "pypi.org",
			Protocol:  "https",
			Action:    "rate_limit",
			RateLimit: 60,
			Reason:    "package index",
		},
		{
			ID:       "wikipedia",
			Domain:   "*.wikipedia.org",
			Protocol: "https",
			Action:   "allow",
			Reason:   "reference lookups",
		},
		{
			ID:     "example-tlds",
			Domain: "example.*",
			Action: "allow",
			Reason: "reserved documentation domains",
		},
		{
			ID:     "default-deny",
			Domain: "*",
			Action: "block",
			Reason: "no matching rule",
		},
	}
}

// DefaultNetworkYAML returns the commented network rule template written
// by trustgate init and by the store when the document is missing.
func DefaultNetworkYAML() string {
	return `# trustgate network rules
# Generated by: trustgate init
#
# Rules are matched by precedence, not position:
#   1. exact domain + protocol      github.com, https
#   2. subdomain wildcard           *.github.com
#   3. TLD wildcard                 example.*   (never matches IPs)
#   4. catch-all                    *
# Within a tier, the first rule in this file wins.
#
# action: allow | block | redirect | rate_limit
#   redirect requires redirect_url; rate_limit requires rate_limit > 0
#   (requests per minute). Disabled rules still match and block, so a
#   disabled allow cannot be bypassed by a broader rule below it.
rules:
  - id: github-https-upgrade
    domain: github.com
    protocol: http
    action: redirect
    redirect_url: https://github.com
    reason: plain HTTP to GitHub is upgraded

  - id: github
    domain: "*.github.com"
    protocol: https
    action: rate_limit
    rate_limit: 120
    max_size_bytes: 10485760
    reason: GitHub API and web

  - id: github-raw
    domain: "*.githubusercontent.com"
    protocol: https
    action: allow
    max_size_bytes: 10485760
    reason: raw file hosting

  - id: golang
    domain: "*.golang.org"
    protocol: https
    action: allow
    reason: Go module and doc hosting

  - id: pypi
    domain: pypi.org
    protocol: https
    action: rate_limit
    rate_limit: 60
    reason: package index

  - id: wikipedia
    domain: "*.wikipedia.org"
    protocol: https
    action: allow
    reason: reference lookups

  - id: example-tlds
    domain: "example.*"
    action: allow
    reason: reserved documentation domains

  - id: default-deny
    domain: "*"
    action: block
    reason: no matching rule
`
}
