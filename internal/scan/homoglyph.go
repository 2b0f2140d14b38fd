package scan

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// confusables maps Cyrillic and Greek letterforms to the Latin letters
// they imitate. Hosts are lowercased before the lookup, so only lowercase
// forms appear here.
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', // U+0430
	'в': 'b', // U+0432
	'е': 'e', // U+0435
	'ё': 'e', // U+0451
	'з': '3', // U+0437
	'и': 'u', // U+0438
	'й': 'n', // U+0439
	'к': 'k', // U+043A
	'м': 'm', // U+043C
	'н': 'h', // U+043D
	'о': 'o', // U+043E
	'п': 'n', // U+043F
	'р': 'p', // U+0440
	'с': 'c', // U+0441
	'т': 't', // U+0442
	'у': 'y', // U+0443
	'х': 'x', // U+0445
	'ь': 'b', // U+044C
	'і': 'i', // U+0456
	'ї': 'i', // U+0457
	'ј': 'j', // U+0458
	'ѕ': 's', // U+0455
	'ԁ': 'd', // U+0501
	'ԛ': 'q', // U+051B
	'ԝ': 'w', // U+051D
	// Greek
	'α': 'a', // U+03B1
	'β': 'b', // U+03B2
	'ε': 'e', // U+03B5
	'η': 'n', // U+03B7
	'ι': 'i', // U+03B9
	'κ': 'k', // U+03BA
	'ν': 'v', // U+03BD
	'ο': 'o', // U+03BF
	'ρ': 'p', // U+03C1
	'τ': 't', // U+03C4
	'υ': 'u', // U+03C5
	'χ': 'x', // U+03C7
	'ω': 'w', // U+03C9
	'γ': 'y', // U+03B3
	'μ': 'u', // U+03BC
	'σ': 'o', // U+03C3
}

// HostReport is the outcome of the confusable-character check on a host.
type HostReport struct {
	Host        string   `json:"host"`
	Normalized  string   `json:"normalized"`
	Unsafe      bool     `json:"unsafe"`
	Confusables []string `json:"confusables,omitempty"`
}

// CheckHost looks for confusable characters in a hostname. Punycode labels
// are decoded and fullwidth forms normalized first, so `xn--` encodings and
// width tricks cannot hide a lookalike. A single substituted character
// marks the host unsafe; no rule may override that.
func (s *Scanner) CheckHost(host string) HostReport {
	report := HostReport{Host: host}

	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "" {
		report.Normalized = h
		return report
	}

	// Expose the unicode form of punycode labels before inspecting runes.
	if strings.Contains(h, "xn--") {
		if u, err := idna.Lookup.ToUnicode(h); err == nil {
			h = u
		}
	}

	// Fullwidth and other compatibility forms fold to ASCII under NFKC.
	h = norm.NFKC.String(h)

	var b strings.Builder
	b.Grow(len(h))
	for _, r := range h {
		latin, ok := confusables[r]
		if !ok {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(latin)
		report.Unsafe = true
		report.Confusables = append(report.Confusables,
			fmt.Sprintf("%q (U+%04X) imitates %q", r, r, latin))
	}

	report.Normalized = b.String()
	return report
}
