package rules

import (
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/scan"
)

// SecretPattern is the raw, YAML-shaped form of one secret detection rule.
type SecretPattern struct {
	ID         string  `yaml:"id"`
	Type       string  `yaml:"type,omitempty"` // placeholder label; defaults to id
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
	Level      string  `yaml:"level,omitempty"` // none | partial | full | hash
}

// secretsDoc is the on-disk shape of the secret pattern document.
type secretsDoc struct {
	Patterns []SecretPattern `yaml:"patterns"`
}

// compileSecrets compiles every pattern, dropping the ones that fail. A
// missing level falls closed to full, so a typo hides more, never less.
func compileSecrets(raw []SecretPattern, logger *zap.Logger) []scan.SecretRule {
	out := make([]scan.SecretRule, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, sp := range raw {
		if seen[sp.ID] {
			logger.Warn("duplicate secret pattern skipped", zap.String("pattern", sp.ID))
			continue
		}
		r, err := scan.NewSecretRule(sp.ID, sp.Type, sp.Pattern, sp.Confidence, model.ParseRedactionLevel(sp.Level))
		if err != nil {
			logger.Warn("secret pattern disabled", zap.Error(err))
			continue
		}
		seen[sp.ID] = true
		out = append(out, r)
	}
	return out
}

// DefaultSecretPatterns returns the built-in detection rules used when no
// secrets document exists.
//
// Value character classes deliberately exclude the characters the redactor
// emits (asterisks, brackets, colons) and require at least 8 characters, so
// a placeholder, a masked value, or a sha256: digest can never re-match.
func DefaultSecretPatterns() []SecretPattern {
	return []SecretPattern{
		{
			ID:         "aws-access-key-id",
			Type:       "AWS_ACCESS_KEY_ID",
			Pattern:    `\bAKIA[0-9A-Z]{16}\b`,
			Confidence: 0.95,
			Level:      "hash",
		},
		{
			ID:         "aws-secret-access-key",
			Type:       "AWS_SECRET_ACCESS_KEY",
			Pattern:    `(?i)aws[_-]?secret[_-]?access[_-]?key['"]?\s*[=:]\s*['"]?([A-Za-z0-9/+=]{40})`,
			Confidence: 0.9,
			Level:      "hash",
		},
		{
			ID:         "github-token",
			Type:       "GITHUB_TOKEN",
			Pattern:    `\bgh[pousr]_[A-Za-z0-9]{36,255}\b`,
			Confidence: 0.95,
			Level:      "hash",
		},
		{
			ID:         "slack-token",
			Type:       "SLACK_TOKEN",
			Pattern:    `\bxox[baprs]-[A-Za-z0-9-]{10,250}\b`,
			Confidence: 0.9,
			Level:      "hash",
		},
		{
			ID:         "openai-api-key",
			Type:       "OPENAI_API_KEY",
			Pattern:    `\bsk-[A-Za-z0-9_-]{20,}\b`,
			Confidence: 0.85,
			Level:      "hash",
		},
		{
			ID:         "private-key-pem",
			Type:       "PRIVATE_KEY",
			Pattern:    `(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----.*?-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Confidence: 0.99,
			Level:      "full",
		},
		{
			ID:         "api-key-kv",
			Type:       "API_KEY",
			Pattern:    `(?i)\bapi[_-]?key['"]?\s*[=:]\s*['"]?([A-Za-z0-9_\-./+=]{8,})`,
			Confidence: 0.8,
			Level:      "partial",
		},
		{
			ID:         "token-kv",
			Type:       "TOKEN",
			Pattern:    `(?i)\b(?:access[_-]?|auth[_-]?|session[_-]?)?token['"]?\s*[=:]\s*['"]?([A-Za-z0-9_\-./+=]{8,})`,
			Confidence: 0.75,
			Level:      "partial",
		},
		{
			ID:         "password-kv",
			Type:       "PASSWORD",
			Pattern:    `(?i)\bpassword['"]?\s*[=:]\s*['"]?([A-Za-z0-9!@#$%^&()_+\-=.,?/~{}<>;|]{8,})`,
			Confidence: 0.75,
			Level:      "full",
		},
		{
			ID:         "bearer-token",
			Type:       "BEARER_TOKEN",
			Pattern:    `(?i)\bbearer\s+([A-Za-z0-9_\-.~+/]{8,}=*)`,
			Confidence: 0.85,
			Level:      "hash",
		},
		{
			ID:         "basic-auth-url",
			Type:       "URL_CREDENTIAL",
			Pattern:    `(?i)\b(?:https?|ftp)://[^/\s:@]+:([^/\s:@]{4,})@`,
			Confidence: 0.9,
			Level:      "full",
		},
	}
}

// DefaultSecretsYAML returns the commented secret pattern template written
// by trustgate init and by the store when the document is missing.
func DefaultSecretsYAML() string {
	return `# trustgate secret patterns
# Generated by: trustgate init
#
# Each pattern feeds both the redactor and the dangerous-content scan.
# Patterns with confidence below 0.5 are loaded but never fire.
#
# level controls the replacement:
#   none     leave the value as is (detection only)
#   partial  keep the first and last two characters, mask the middle
#   full     replace the value with [REDACTED:<TYPE>]
#   hash     replace the value with sha256:<first 12 hex digits>
#
# When a pattern has capture groups, the innermost non-empty group is the
# value that gets replaced; otherwise the whole match is. Keep value
# character classes away from '*', '[', ']' and ':' so replacements can
# never match again.
patterns:
  - id: aws-access-key-id
    type: AWS_ACCESS_KEY_ID
    pattern: '\bAKIA[0-9A-Z]{16}\b'
    confidence: 0.95
    level: hash

  - id: aws-secret-access-key
    type: AWS_SECRET_ACCESS_KEY
    pattern: '(?i)aws[_-]?secret[_-]?access[_-]?key[''"]?\s*[=:]\s*[''"]?([A-Za-z0-9/+=]{40})'
    confidence: 0.9
    level: hash

  - id: github-token
    type: GITHUB_TOKEN
    pattern: '\bgh[pousr]_[A-Za-z0-9]{36,255}\b'
    confidence: 0.95
    level: hash

  - id: slack-token
    type: SLACK_TOKEN
    pattern: '\bxox[baprs]-[A-Za-z0-9-]{10,250}\b'
    confidence: 0.9
    level: hash

  - id: openai-api-key
    type: OPENAI_API_KEY
    pattern: '\bsk-[A-Za-z0-9_-]{20,}\b'
    confidence: 0.85
    level: hash

  - id: private-key-pem
    type: PRIVATE_KEY
    pattern: '(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----.*?-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----'
    confidence: 0.99
    level: full

  - id: api-key-kv
    type: API_KEY
    pattern: '(?i)\bapi[_-]?key[''"]?\s*[=:]\s*[''"]?([A-Za-z0-9_\-./+=]{8,})'
    confidence: 0.8
    level: partial

  - id: token-kv
    type: TOKEN
    pattern: '(?i)\b(?:access[_-]?|auth[_-]?|session[_-]?)?token[''"]?\s*[=:]\s*[''"]?([A-Za-z0-9_\-./+=]{8,})'
    confidence: 0.75
    level: partial

  - id: password-kv
    type: PASSWORD
    pattern: '(?i)\bpassword[''"]?\s*[=:]\s*[''"]?([A-Za-z0-9!@#$%^&()_+\-=.,?/~{}<>;|]{8,})'
    confidence: 0.75
    level: full

  - id: bearer-token
    type: BEARER_TOKEN
    pattern: '(?i)\bbearer\s+([A-Za-z0-9_\-.~+/]{8,}=*)'
    confidence: 0.85
    level: hash

  - id: basic-auth-url
    type: URL_CREDENTIAL
    pattern: '(?i)\b(?:https?|ftp)://[^/\s:@]+:([^/\s:@]{4,})@'
    confidence: 0.9
    level: full
`
}
