package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ppiankov/trustgate/internal/model"
)

// digestLen is the number of hex characters kept from a value digest.
const digestLen = 12

// Apply rewrites a detected secret value according to its redaction level.
// RedactNone returns the value unchanged; detection is still recorded by the
// caller.
func Apply(level model.RedactionLevel, secretType, value string) string {
	switch level {
	case model.RedactNone:
		return value
	case model.RedactPartial:
		return Mask(value)
	case model.RedactHash:
		return Digest(value)
	default:
		return Placeholder(secretType)
	}
}

// Mask keeps the first and last two characters of a value and replaces the
// rest with asterisks. Values of four characters or fewer are masked
// entirely. Operates on runes so multi-byte values keep their length.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// Digest returns a truncated SHA-256 fingerprint of the value, prefixed so
// readers can tell a digest from a literal. The same secret always produces
// the same fingerprint, which lets operators correlate occurrences across
// logs without ever seeing the value.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(sum[:])[:digestLen]
}

// Placeholder returns the literal replacement token for a fully redacted
// secret, e.g. [REDACTED:AWS_ACCESS_KEY]. The type is upper-cased and
// characters outside [A-Z0-9_] are folded to underscores so the token shape
// stays stable no matter what the pattern config calls the type.
func Placeholder(secretType string) string {
	t := strings.ToUpper(strings.TrimSpace(secretType))
	if t == "" {
		t = "SECRET"
	}
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return "[REDACTED:" + b.String() + "]"
}
