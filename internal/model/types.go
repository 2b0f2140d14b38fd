package model

import (
	"time"

	"github.com/google/uuid"
)

// SecurityLevel classifies how much damage a tool can do when misused.
type SecurityLevel string

const (
	LevelSafe     SecurityLevel = "safe"
	LevelLow      SecurityLevel = "low"
	LevelMedium   SecurityLevel = "medium"
	LevelHigh     SecurityLevel = "high"
	LevelCritical SecurityLevel = "critical"
)

// LevelRank maps security levels to comparable integers.
var LevelRank = map[SecurityLevel]int{
	LevelSafe:     0,
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

// ParseSecurityLevel validates a raw level string. Unknown values fail
// closed to critical so a typo in config never weakens enforcement.
func ParseSecurityLevel(s string) SecurityLevel {
	switch SecurityLevel(s) {
	case LevelSafe, LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return SecurityLevel(s)
	}
	return LevelCritical
}

// ValidSecurityLevel reports whether s names a known level.
func ValidSecurityLevel(s string) bool {
	switch SecurityLevel(s) {
	case LevelSafe, LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return true
	}
	return false
}

// RuleAction is what a network rule does when it matches.
type RuleAction string

const (
	ActionAllow     RuleAction = "allow"
	ActionBlock     RuleAction = "block"
	ActionRateLimit RuleAction = "rate_limit"
	ActionRedirect  RuleAction = "redirect"
)

// ParseRuleAction validates a raw action string, failing closed to block.
func ParseRuleAction(s string) RuleAction {
	switch RuleAction(s) {
	case ActionAllow, ActionBlock, ActionRateLimit, ActionRedirect:
		return RuleAction(s)
	}
	return ActionBlock
}

// ValidRuleAction reports whether s names a known rule action.
func ValidRuleAction(s string) bool {
	switch RuleAction(s) {
	case ActionAllow, ActionBlock, ActionRateLimit, ActionRedirect:
		return true
	}
	return false
}

// Verdict is the outcome of a network evaluation. Unlike RuleAction it has
// no redirect member: a redirect rule that fires yields an allow verdict
// with RedirectURL set.
type Verdict string

const (
	VerdictAllow     Verdict = "allow"
	VerdictBlock     Verdict = "block"
	VerdictRateLimit Verdict = "rate_limit"
)

// ApprovalStatus is the lifecycle state of a tool execution request.
type ApprovalStatus string

const (
	StatusPending      ApprovalStatus = "pending"
	StatusApproved     ApprovalStatus = "approved"
	StatusRejected     ApprovalStatus = "rejected"
	StatusAutoApproved ApprovalStatus = "auto_approved"
)

// Terminal reports whether no further transition is possible.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoApproved
}

// RejectCode identifies which pipeline stage rejected a request.
type RejectCode string

const (
	RejectUnknownTool      RejectCode = "unknown_tool"
	RejectDisabled         RejectCode = "disabled"
	RejectDryRunRequired   RejectCode = "dry_run_required"
	RejectRateLimited      RejectCode = "rate_limited"
	RejectParamViolation   RejectCode = "param_violation"
	RejectDangerousPattern RejectCode = "dangerous_pattern"
	RejectApprovalExpired  RejectCode = "approval_expired"
	RejectDenied           RejectCode = "denied"
	RejectInternal         RejectCode = "internal_error"
)

// RedactionLevel selects how a detected secret is transformed.
type RedactionLevel string

const (
	RedactNone    RedactionLevel = "none"
	RedactPartial RedactionLevel = "partial"
	RedactFull    RedactionLevel = "full"
	RedactHash    RedactionLevel = "hash"
)

// ParseRedactionLevel validates a raw level string, failing closed to full.
func ParseRedactionLevel(s string) RedactionLevel {
	switch RedactionLevel(s) {
	case RedactNone, RedactPartial, RedactFull, RedactHash:
		return RedactionLevel(s)
	}
	return RedactFull
}

// ExecutionRequest describes one tool call an agent wants to perform.
type ExecutionRequest struct {
	ID      string         `json:"id"`
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	Session string         `json:"session,omitempty"`
	DryRun  bool           `json:"dry_run,omitempty"`
	Time    time.Time      `json:"time"`
}

// NewExecutionRequest builds a request with a fresh ID and timestamp.
func NewExecutionRequest(tool string, params map[string]any) ExecutionRequest {
	return ExecutionRequest{
		ID:     uuid.NewString(),
		Tool:   tool,
		Params: params,
		Time:   time.Now().UTC(),
	}
}

// Decision is the auditable outcome of a ToolGate evaluation.
type Decision struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id"`
	Tool       string         `json:"tool"`
	Status     ApprovalStatus `json:"status"`
	Code       RejectCode     `json:"code,omitempty"`
	Reason     string         `json:"reason"`
	Level      SecurityLevel  `json:"level"`
	Actor      string         `json:"actor,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at,omitzero"`
}

// Allowed reports whether the request may proceed now.
func (d Decision) Allowed() bool {
	return d.Status == StatusApproved || d.Status == StatusAutoApproved
}

// NetDecision is the auditable outcome of a NetGate evaluation.
type NetDecision struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Host        string    `json:"host"`
	Verdict     Verdict   `json:"verdict"`
	RuleID      string    `json:"rule_id,omitempty"`
	Reason      string    `json:"reason"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	MaxSize     int64     `json:"max_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Allowed reports whether the request may be sent.
func (d NetDecision) Allowed() bool {
	return d.Verdict == VerdictAllow
}
