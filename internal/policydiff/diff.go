// Package policydiff compares two rule document sets and reports what
// changed in enforcement terms. trustgate diff uses it to review a
// candidate rule directory before deploying it.
package policydiff

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/rules"
)

// Docs is the raw rule material on one side of a comparison.
type Docs struct {
	Tools   []rules.ToolPolicy
	Network []rules.NetworkRule
	Secrets []rules.SecretPattern
}

// Load reads the rule documents under paths. A missing document loads as
// the built-in defaults, so diffing an empty directory shows the drift
// from stock rules.
func Load(paths rules.Paths) Docs {
	st := rules.Open(paths, zap.NewNop())
	return Docs{
		Tools:   st.ToolPolicies(),
		Network: st.NetworkRules(),
		Secrets: st.SecretPatterns(),
	}
}

// RuleChange represents one added, removed, or modified entry.
type RuleChange struct {
	Type string `json:"type"` // "added", "removed", "changed"
	Rule string `json:"rule"`
}

// Result holds the comparison of two rule document sets.
type Result struct {
	OldDir     string       `json:"old_dir"`
	NewDir     string       `json:"new_dir"`
	Tools      []RuleChange `json:"tools,omitempty"`
	Network    []RuleChange `json:"network,omitempty"`
	Secrets    []RuleChange `json:"secrets,omitempty"`
	HasChanges bool         `json:"has_changes"`
}

// Diff compares two rule document sets and returns the differences.
// Entries are matched by identity (tool name, domain plus protocol,
// pattern id), so reordering alone is not reported.
func Diff(old, new Docs) *Result {
	r := &Result{
		Tools:   diffTools(old.Tools, new.Tools),
		Network: diffNetwork(old.Network, new.Network),
		Secrets: diffSecrets(old.Secrets, new.Secrets),
	}
	r.HasChanges = len(r.Tools) > 0 || len(r.Network) > 0 || len(r.Secrets) > 0
	return r
}

func diffTools(oldPolicies, newPolicies []rules.ToolPolicy) []RuleChange {
	oldMap := make(map[string]rules.ToolPolicy)
	for _, p := range oldPolicies {
		oldMap[p.Name] = p
	}
	newMap := make(map[string]rules.ToolPolicy)
	for _, p := range newPolicies {
		newMap[p.Name] = p
	}

	var out []RuleChange
	for _, p := range newPolicies {
		oldP, exists := oldMap[p.Name]
		if !exists {
			out = append(out, RuleChange{Type: "added", Rule: toolLabel(p)})
			continue
		}
		if fields := toolFieldChanges(oldP, p); len(fields) > 0 {
			out = append(out, RuleChange{
				Type: "changed",
				Rule: fmt.Sprintf("%s: %s", p.Name, strings.Join(fields, ", ")),
			})
		}
	}
	for _, p := range oldPolicies {
		if _, exists := newMap[p.Name]; !exists {
			out = append(out, RuleChange{Type: "removed", Rule: toolLabel(p)})
		}
	}
	return out
}

func toolLabel(p rules.ToolPolicy) string {
	disp := "auto"
	switch {
	case !p.Allowed:
		disp = "disabled"
	case p.DryRunOnly:
		disp = "dry-run only"
	case p.RequiresApproval:
		disp = "requires approval"
	}
	if p.SecurityLevel != "" {
		return fmt.Sprintf("%s → %s (%s)", p.Name, disp, p.SecurityLevel)
	}
	return fmt.Sprintf("%s → %s", p.Name, disp)
}

func toolFieldChanges(old, new rules.ToolPolicy) []string {
	var out []string
	if old.Allowed != new.Allowed {
		out = append(out, boolChange("allowed", old.Allowed, new.Allowed, false))
	}
	if old.SecurityLevel != new.SecurityLevel {
		comment := "looser"
		if model.LevelRank[model.ParseSecurityLevel(new.SecurityLevel)] >
			model.LevelRank[model.ParseSecurityLevel(old.SecurityLevel)] {
			comment = "stricter"
		}
		out = append(out, fmt.Sprintf("security_level %s → %s (%s)", old.SecurityLevel, new.SecurityLevel, comment))
	}
	if old.RequiresApproval != new.RequiresApproval {
		out = append(out, boolChange("requires_approval", old.RequiresApproval, new.RequiresApproval, true))
	}
	if old.DryRunOnly != new.DryRunOnly {
		out = append(out, boolChange("dry_run_only", old.DryRunOnly, new.DryRunOnly, true))
	}
	if old.MaxExecPerHour != new.MaxExecPerHour {
		out = append(out, limitChange("max_exec_per_hour", int64(old.MaxExecPerHour), int64(new.MaxExecPerHour)))
	}
	if !reflect.DeepEqual(old.AllowedParams, new.AllowedParams) ||
		!reflect.DeepEqual(old.ForbiddenParams, new.ForbiddenParams) ||
		!reflect.DeepEqual(old.ParamConstraints, new.ParamConstraints) ||
		!reflect.DeepEqual(old.ArgumentSchema, new.ArgumentSchema) {
		out = append(out, "param rules changed")
	}
	return out
}

func diffNetwork(oldRules, newRules []rules.NetworkRule) []RuleChange {
	oldMap := make(map[string]rules.NetworkRule)
	for _, r := range oldRules {
		oldMap[networkKey(r)] = r
	}
	newMap := make(map[string]rules.NetworkRule)
	for _, r := range newRules {
		newMap[networkKey(r)] = r
	}

	var out []RuleChange
	for _, r := range newRules {
		oldR, exists := oldMap[networkKey(r)]
		if !exists {
			out = append(out, RuleChange{Type: "added", Rule: networkLabel(r)})
			continue
		}
		if fields := networkFieldChanges(oldR, r); len(fields) > 0 {
			out = append(out, RuleChange{
				Type: "changed",
				Rule: fmt.Sprintf("%s: %s", networkName(r), strings.Join(fields, ", ")),
			})
		}
	}
	for _, r := range oldRules {
		if _, exists := newMap[networkKey(r)]; !exists {
			out = append(out, RuleChange{Type: "removed", Rule: networkLabel(r)})
		}
	}
	return out
}

func networkKey(r rules.NetworkRule) string {
	return r.Domain + "|" + r.Protocol
}

func networkName(r rules.NetworkRule) string {
	if r.Protocol != "" {
		return fmt.Sprintf("domain=%s proto=%s", r.Domain, r.Protocol)
	}
	return fmt.Sprintf("domain=%s", r.Domain)
}

func networkLabel(r rules.NetworkRule) string {
	return fmt.Sprintf("%s → %s", networkName(r), r.Action)
}

func networkFieldChanges(old, new rules.NetworkRule) []string {
	var out []string
	if old.Action != new.Action {
		comment := "looser"
		if new.Action == string(model.ActionBlock) {
			comment = "stricter"
		}
		out = append(out, fmt.Sprintf("action %s → %s (%s)", old.Action, new.Action, comment))
	}
	if old.RedirectURL != new.RedirectURL {
		out = append(out, fmt.Sprintf("redirect_url %s → %s", old.RedirectURL, new.RedirectURL))
	}
	if old.RateLimit != new.RateLimit {
		out = append(out, limitChange("rate_limit", int64(old.RateLimit), int64(new.RateLimit)))
	}
	if old.MaxSizeBytes != new.MaxSizeBytes {
		out = append(out, limitChange("max_size_bytes", old.MaxSizeBytes, new.MaxSizeBytes))
	}
	if !reflect.DeepEqual(old.AllowedPorts, new.AllowedPorts) {
		out = append(out, "allowed_ports changed")
	}
	if enabledOf(old) != enabledOf(new) {
		out = append(out, boolChange("enabled", enabledOf(old), enabledOf(new), false))
	}
	return out
}

func enabledOf(r rules.NetworkRule) bool {
	return r.Enabled == nil || *r.Enabled
}

func diffSecrets(oldPatterns, newPatterns []rules.SecretPattern) []RuleChange {
	oldMap := make(map[string]rules.SecretPattern)
	for _, p := range oldPatterns {
		oldMap[p.ID] = p
	}
	newMap := make(map[string]rules.SecretPattern)
	for _, p := range newPatterns {
		newMap[p.ID] = p
	}

	var out []RuleChange
	for _, p := range newPatterns {
		oldP, exists := oldMap[p.ID]
		if !exists {
			out = append(out, RuleChange{Type: "added", Rule: secretLabel(p)})
			continue
		}
		if fields := secretFieldChanges(oldP, p); len(fields) > 0 {
			out = append(out, RuleChange{
				Type: "changed",
				Rule: fmt.Sprintf("%s: %s", p.ID, strings.Join(fields, ", ")),
			})
		}
	}
	for _, p := range oldPatterns {
		if _, exists := newMap[p.ID]; !exists {
			out = append(out, RuleChange{Type: "removed", Rule: secretLabel(p)})
		}
	}
	return out
}

func secretLabel(p rules.SecretPattern) string {
	return fmt.Sprintf("%s (confidence %.2f)", p.ID, p.Confidence)
}

func secretFieldChanges(old, new rules.SecretPattern) []string {
	var out []string
	if old.Pattern != new.Pattern {
		out = append(out, "pattern changed")
	}
	if old.Confidence != new.Confidence {
		out = append(out, fmt.Sprintf("confidence %.2f → %.2f", old.Confidence, new.Confidence))
	}
	if old.Level != new.Level {
		out = append(out, fmt.Sprintf("level %s → %s", levelOrDefault(old.Level), levelOrDefault(new.Level)))
	}
	if old.Type != new.Type {
		out = append(out, fmt.Sprintf("type %s → %s", old.Type, new.Type))
	}
	return out
}

// levelOrDefault mirrors the loader, where a missing redaction level falls
// closed to full.
func levelOrDefault(s string) string {
	if s == "" {
		return "full"
	}
	return s
}

func boolChange(field string, old, new, stricterWhenTrue bool) string {
	comment := "looser"
	if new == stricterWhenTrue {
		comment = "stricter"
	}
	return fmt.Sprintf("%s %t → %t (%s)", field, old, new, comment)
}

// limitChange treats zero as unlimited, so any cap is stricter than none
// and a lower cap is stricter than a higher one.
func limitChange(field string, old, new int64) string {
	comment := "looser"
	if new != 0 && (old == 0 || new < old) {
		comment = "stricter"
	}
	return fmt.Sprintf("%s %d → %d (%s)", field, old, new, comment)
}
