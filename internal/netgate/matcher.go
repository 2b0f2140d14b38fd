// Package netgate decides whether an agent may reach a URL. Evaluation is
// pure in-memory work against the current rule snapshot: parse, screen the
// host, match a rule, apply the rule's budget and port constraints. Every
// terminal decision lands in a bounded history ring.
package netgate

import (
	"net/netip"
	"strings"

	"github.com/ppiankov/trustgate/internal/rules"
)

// Match resolves host and protocol against the rule set. Precedence, first
// hit wins:
//
//  1. exact domain match
//  2. subdomain wildcard *.base (host equals base or ends in .base)
//  3. TLD wildcard base.* (host starts with base.)
//  4. catch-all *
//
// Literal IP hosts skip the wildcard tiers and fall straight from exact to
// the catch-all. Within a tier the earliest rule in the document wins. A
// rule that names a protocol only matches that protocol. Disabled rules
// still match; refusing them is the gate's job, so a disabled allow cannot
// fall through to a broader rule. Returns nil when nothing matches.
func Match(set []*rules.CompiledRule, host, protocol string) *rules.CompiledRule {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return nil
	}
	_, err := netip.ParseAddr(host)
	isIP := err == nil

	for _, r := range set {
		if r.Kind == rules.MatchExact && r.Domain == host && protocolOK(r, protocol) {
			return r
		}
	}

	if !isIP {
		for _, r := range set {
			if r.Kind != rules.MatchSubdomains || !protocolOK(r, protocol) {
				continue
			}
			if host == r.Base || strings.HasSuffix(host, "."+r.Base) {
				return r
			}
		}
		for _, r := range set {
			if r.Kind != rules.MatchTLDs || !protocolOK(r, protocol) {
				continue
			}
			if strings.HasPrefix(host, r.Base+".") {
				return r
			}
		}
	}

	for _, r := range set {
		if r.Kind == rules.MatchAny && protocolOK(r, protocol) {
			return r
		}
	}
	return nil
}

func protocolOK(r *rules.CompiledRule, protocol string) bool {
	return r.Protocol == "" || r.Protocol == protocol
}
