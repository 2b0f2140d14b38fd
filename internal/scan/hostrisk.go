package scan

import (
	"net/netip"
	"strings"
)

// hostileTLDs are top-level domains that never carry legitimate agent
// traffic. They are screened before rule matching so no allow rule can
// reach them.
var hostileTLDs = []string{".onion", ".bit", ".i2p"}

// SuspiciousHost screens a host against the built-in risk table: hostile
// TLDs, loopback, private (RFC1918) and link-local address space. It runs
// before rule lookup; a hit is a hard block.
func (s *Scanner) SuspiciousHost(host string) (string, bool) {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "" {
		return "empty host", true
	}

	for _, tld := range hostileTLDs {
		if strings.HasSuffix(h, tld) {
			return "hostile TLD " + tld, true
		}
	}

	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return "loopback host", true
	}

	addr, err := netip.ParseAddr(h)
	if err != nil {
		// Not an IP literal; nothing further to screen here.
		return "", false
	}
	addr = addr.Unmap()

	switch {
	case addr.IsLoopback():
		return "loopback address", true
	case addr.IsPrivate():
		return "private address space", true
	case addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		return "link-local address", true
	case addr.IsUnspecified():
		return "unspecified address", true
	}
	return "", false
}
