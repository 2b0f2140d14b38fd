package scan

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/trustgate/internal/model"
)

// SecretRule is one row of the secret-detection table. Rules are compiled
// once at load; a rule that fails to compile is dropped there and never
// reaches the scanner.
type SecretRule struct {
	ID         string
	Type       string
	Confidence float64
	Level      model.RedactionLevel
	re         *regexp.Regexp
}

// NewSecretRule compiles pattern and validates the row.
func NewSecretRule(id, typ, pattern string, confidence float64, level model.RedactionLevel) (SecretRule, error) {
	if id == "" {
		return SecretRule{}, fmt.Errorf("secret rule: empty id")
	}
	if confidence < 0 || confidence > 1 {
		return SecretRule{}, fmt.Errorf("secret rule %s: confidence %v out of range [0,1]", id, confidence)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return SecretRule{}, fmt.Errorf("secret rule %s: %w", id, err)
	}
	if typ == "" {
		typ = id
	}
	return SecretRule{ID: id, Type: typ, Confidence: confidence, Level: level, re: re}, nil
}

// Secret is one detected secret with its span in the original text.
// Start and End are byte offsets, [Start, End).
type Secret struct {
	RuleID     string
	Type       string
	Value      string
	Confidence float64
	Level      model.RedactionLevel
	Start      int
	End        int
}

// DetectSecrets runs every secret rule with confidence >= MinConfidence
// over text. The reported span is the innermost non-empty capture group
// when the pattern defines groups, else the full match. Overlapping spans
// are merged keeping the highest-confidence match; results are sorted by
// Start.
func (s *Scanner) DetectSecrets(text string) []Secret {
	if s == nil || text == "" {
		return nil
	}

	var found []Secret
	for _, r := range s.secrets {
		if r.Confidence < MinConfidence {
			continue
		}
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := secretSpan(m)
			if start < 0 || start >= end {
				continue
			}
			found = append(found, Secret{
				RuleID:     r.ID,
				Type:       r.Type,
				Value:      text[start:end],
				Confidence: r.Confidence,
				Level:      r.Level,
				Start:      start,
				End:        end,
			})
		}
	}
	return mergeOverlaps(found)
}

// secretSpan picks the reported span from a submatch index vector: the
// innermost (highest-numbered) non-empty capture group, or the full match
// when the pattern captures nothing.
func secretSpan(m []int) (int, int) {
	for i := len(m) - 2; i >= 2; i -= 2 {
		if m[i] >= 0 && m[i+1] > m[i] {
			return m[i], m[i+1]
		}
	}
	return m[0], m[1]
}

// mergeOverlaps resolves overlapping spans: the highest confidence wins;
// on a tie the earlier, then longer span is kept.
func mergeOverlaps(in []Secret) []Secret {
	if len(in) < 2 {
		return in
	}

	sort.Slice(in, func(i, j int) bool {
		if in[i].Start != in[j].Start {
			return in[i].Start < in[j].Start
		}
		if in[i].Confidence != in[j].Confidence {
			return in[i].Confidence > in[j].Confidence
		}
		return in[i].End > in[j].End
	})

	out := in[:0:0]
	for _, s := range in {
		n := len(out)
		if n == 0 || s.Start >= out[n-1].End {
			out = append(out, s)
			continue
		}
		if s.Confidence > out[n-1].Confidence {
			out[n-1] = s
		}
	}
	return out
}
