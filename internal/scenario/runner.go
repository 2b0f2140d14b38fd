package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/netgate"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/toolgate"
)

// Run evaluates every case against fresh gates over the given store. The
// gates share nothing with a running guard: scenario checks never touch
// the audit log, the approval mirror, or the rate budgets of live traffic.
func Run(s *Scenario, store *rules.Store) *RunResult {
	tools := toolgate.New(store, toolgate.Options{})
	net := netgate.New(store, netgate.Options{})

	result := &RunResult{Name: s.Name, Total: len(s.Cases)}

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Expected: strings.ToLower(strings.TrimSpace(c.Expect)),
		}

		switch {
		case c.URL != "":
			d := net.Evaluate(c.URL)
			cr.Subject = c.URL
			cr.Actual = string(d.Verdict)
			cr.Reason = d.Reason
		case c.Tool != "":
			d := tools.Evaluate(model.NewExecutionRequest(c.Tool, c.Params))
			cr.Subject = c.Tool
			cr.Actual = string(d.Status)
			cr.Reason = d.Reason
		default:
			cr.Subject = "(case)"
			cr.Actual = "invalid"
			cr.Reason = "case names neither tool nor url"
		}

		if cr.Actual == cr.Expected {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

// Load parses one scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadAndRun loads a scenario file and evaluates it against the rule
// documents at paths. Unreadable documents fall back to the defaults,
// same as a live gate.
func LoadAndRun(path string, paths rules.Paths) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	result := Run(s, rules.Open(paths, nil))
	result.File = path
	return result, nil
}
