// Package sim replays recorded network decisions against an alternate
// rule set. trustgate simulate uses it to preview what a rule change
// would have done to real traffic before deploying it.
package sim

import (
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/audit"
	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/netgate"
	"github.com/ppiankov/trustgate/internal/rules"
)

// Simulate replays every network decision recorded in the audit log at
// logPath against the rule documents under rulesDir and reports the URLs
// whose verdict changed. Entries replay in log order through a fresh
// gate, so a lowered rate limit shows which recorded calls it would have
// throttled. Tool and redaction entries are skipped: the log does not
// retain the parameters needed to re-evaluate them.
func Simulate(logPath, rulesDir string) (*Result, error) {
	recorded, err := audit.Query(logPath, audit.Filter{Engine: audit.EngineNet})
	if err != nil {
		return nil, err
	}

	store := rules.Open(rules.PathsIn(rulesDir), zap.NewNop())
	gate := netgate.New(store, netgate.Options{})

	result := &Result{RulesDir: rulesDir}
	for _, e := range recorded.Entries {
		result.TotalDecisions++

		d := gate.Evaluate(e.Subject)
		newVerdict := string(d.Verdict)
		if newVerdict == e.Decision {
			continue
		}

		result.Changes = append(result.Changes, DiffEntry{
			Timestamp:  e.Timestamp,
			URL:        e.Subject,
			OldVerdict: e.Decision,
			NewVerdict: newVerdict,
			OldRule:    e.RuleID,
			NewRule:    d.RuleID,
			NewReason:  d.Reason,
		})
		result.ChangedDecisions++

		if isPermissive(e.Decision) && !isPermissive(newVerdict) {
			result.NewlyBlocked++
		}
		if !isPermissive(e.Decision) && isPermissive(newVerdict) {
			result.NewlyAllowed++
		}
	}
	return result, nil
}

// isPermissive returns true for verdicts that let the fetch proceed.
func isPermissive(verdict string) bool {
	return verdict == string(model.VerdictAllow)
}
