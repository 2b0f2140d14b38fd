// Package scan holds the data-driven pattern tables behind the gates: the
// dangerous-operation classifier, the secret detector, and the host checks
// (confusable characters, hostile TLDs, private address space). Detection
// behavior lives in table rows, not code paths; adding a pattern means
// adding a row.
package scan

import "regexp"

// MinConfidence is the floor below which secret rules do not participate
// in detection or redaction.
const MinConfidence = 0.5

// Severity grades a dangerous-operation finding.
type Severity string

const (
	SevLow      Severity = "low"
	SevMedium   Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// Rule is one row of the dangerous-operation table.
type Rule struct {
	ID       string
	Category string
	Severity Severity
	re       *regexp.Regexp
}

// Finding is one dangerous-operation hit with its span in the input.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Excerpt  string   `json:"excerpt"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// dangerousRules is the built-in classifier table. Ordering matters only
// for the order of reported findings; every row is always evaluated.
var dangerousRules = []Rule{
	{
		ID:       "pipe-to-shell",
		Category: "shell_injection",
		Severity: SevCritical,
		re:       regexp.MustCompile(`\|\s*(?:ba|z|fi)?sh\b`),
	},
	{
		ID:       "chained-shell-command",
		Category: "shell_injection",
		Severity: SevHigh,
		re:       regexp.MustCompile(`(?:;|&&|\|\|)\s*(?:rm|curl|wget|nc|ncat|bash|sh|python|perl)\b`),
	},
	{
		ID:       "command-substitution",
		Category: "shell_injection",
		Severity: SevHigh,
		re:       regexp.MustCompile("\\$\\([^)]*\\)|`[^`]+`"),
	},
	{
		ID:       "recursive-force-delete",
		Category: "destructive_fs",
		Severity: SevCritical,
		re:       regexp.MustCompile(`\brm\s+(?:-[a-zA-Z]*[rR][a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*[rR])[a-zA-Z]*\b`),
	},
	{
		ID:       "root-path-delete",
		Category: "destructive_fs",
		Severity: SevCritical,
		re:       regexp.MustCompile(`\brm\s+(?:-[a-zA-Z]+\s+)*/(?:\s|$|['"])`),
	},
	{
		ID:       "disk-overwrite",
		Category: "destructive_fs",
		Severity: SevCritical,
		re:       regexp.MustCompile(`\b(?:mkfs(?:\.\w+)?|dd\s+if=)\b|>\s*/dev/(?:sd[a-z]|nvme\d)`),
	},
	{
		ID:       "fork-bomb",
		Category: "destructive_fs",
		Severity: SevCritical,
		re:       regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}`),
	},
	{
		ID:       "privilege-escalation",
		Category: "privilege_escalation",
		Severity: SevHigh,
		re:       regexp.MustCompile(`\bsudo\s+|\bchmod\s+(?:-R\s+)?0?777\b|\bchown\s+(?:-R\s+)?root\b`),
	},
	{
		ID:       "setuid-bit",
		Category: "privilege_escalation",
		Severity: SevHigh,
		re:       regexp.MustCompile(`\bchmod\s+[ugo]*\+s\b|\bchmod\s+[0-7]*[4][0-7]{3}\b`),
	},
	{
		ID:       "sql-injection",
		Category: "sql_injection",
		Severity: SevHigh,
		re:       regexp.MustCompile(`(?i)\b(?:union\s+(?:all\s+)?select|drop\s+(?:table|database)|delete\s+from\s+\w+\s*(?:;|$)|or\s+1\s*=\s*1)\b`),
	},
	{
		ID:       "credential-assignment",
		Category: "credential_exposure",
		Severity: SevMedium,
		re:       regexp.MustCompile(`(?i)\b(?:password|passwd|secret|api[_-]?key|auth[_-]?token|private[_-]?key)['"]?\s*[=:]\s*\S+`),
	},
	{
		ID:       "path-traversal",
		Category: "path_traversal",
		Severity: SevMedium,
		re:       regexp.MustCompile(`(?:\.\./){2,}|\.\.\\\.\.\\`),
	},
	{
		ID:       "remote-fetch-execute",
		Category: "shell_injection",
		Severity: SevCritical,
		re:       regexp.MustCompile(`\b(?:curl|wget)\b[^|;&]*[|;&]+\s*(?:sudo\s+)?(?:ba|z)?sh\b`),
	},
	{
		ID:       "shell-history-tamper",
		Category: "evasion",
		Severity: SevMedium,
		re:       regexp.MustCompile(`\bhistory\s+-c\b|\bunset\s+HISTFILE\b|>\s*~?/\.bash_history`),
	},
}

// Scanner evaluates text against the pattern tables. The dangerous table
// is built in; secret rules come from config so deployments can extend
// them. A nil Scanner classifies nothing and detects nothing.
type Scanner struct {
	dangerous []Rule
	secrets   []SecretRule
}

// New returns a Scanner using the built-in dangerous table and the given
// secret rules.
func New(secrets []SecretRule) *Scanner {
	return &Scanner{dangerous: dangerousRules, secrets: secrets}
}

// Classify reports every dangerous-operation rule that matches text.
// Findings come back in table order, then by position within the text.
func (s *Scanner) Classify(text string) []Finding {
	if s == nil || text == "" {
		return nil
	}

	var findings []Finding
	for _, r := range s.dangerous {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{
				RuleID:   r.ID,
				Category: r.Category,
				Severity: r.Severity,
				Excerpt:  excerpt(text, loc[0], loc[1]),
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	return findings
}

// SecretRules returns the configured secret rules.
func (s *Scanner) SecretRules() []SecretRule {
	if s == nil {
		return nil
	}
	return s.secrets
}

// excerpt clips a match to a displayable size.
func excerpt(text string, start, end int) string {
	const max = 64
	m := text[start:end]
	if len(m) > max {
		return m[:max]
	}
	return m
}
