package trustgate

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/redact"
)

// Status is the outcome of a tool call check.
type Status string

const (
	StatusPending      Status = Status(model.StatusPending)
	StatusApproved     Status = Status(model.StatusApproved)
	StatusRejected     Status = Status(model.StatusRejected)
	StatusAutoApproved Status = Status(model.StatusAutoApproved)
)

// Call describes a tool invocation the agent intends to make.
type Call struct {
	Tool   string         // policy name, e.g. "file_delete"
	Params map[string]any // arguments, checked against the policy
	Actor  string         // overrides the client-level actor when set
	DryRun bool           // satisfies dry_run_only policies
}

// Result is the outcome of checking one tool call.
type Result struct {
	Status    Status
	Reason    string
	Code      string // which pipeline stage rejected, empty otherwise
	RequestID string
	ExpiresAt time.Time // approval deadline for pending results
}

// Allowed reports whether the call may proceed now.
func (r Result) Allowed() bool {
	return r.Status == StatusApproved || r.Status == StatusAutoApproved
}

// NetResult is the outcome of checking one outbound URL.
type NetResult struct {
	Verdict     string // allow | block | rate_limit
	RuleID      string
	Reason      string
	RedirectURL string
	MaxSize     int64
}

// Allowed reports whether the request may be sent.
func (r NetResult) Allowed() bool {
	return r.Verdict == string(model.VerdictAllow)
}

// Redaction is the outcome of masking secrets in a piece of text.
type Redaction struct {
	Redacted string
	Count    int
	Types    []string // distinct secret types found, sorted
}

// Approval is a tool call waiting for an operator.
type Approval struct {
	RequestID string
	Tool      string
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BlockedError is returned when the gate stops a tool call or an outbound
// request. Exactly one of Tool and URL is set.
type BlockedError struct {
	Tool      string
	URL       string
	Status    Status // tool calls: pending or rejected
	Verdict   string // outbound requests: block or rate_limit
	Code      string
	RuleID    string
	Reason    string
	RequestID string    // set when an approval is pending
	ExpiresAt time.Time // approval deadline for pending calls
}

func (e *BlockedError) Error() string {
	subject := e.Tool
	if subject == "" {
		subject = e.URL
	}
	state := string(e.Status)
	if state == "" {
		state = e.Verdict
	}
	return fmt.Sprintf("trustgate blocked %s (%s): %s", subject, state, e.Reason)
}

// Pending reports whether the call is held for approval rather than
// terminally rejected.
func (e *BlockedError) Pending() bool {
	return e.Status == StatusPending
}

func toResult(d model.Decision) Result {
	return Result{
		Status:    Status(d.Status),
		Reason:    d.Reason,
		Code:      string(d.Code),
		RequestID: d.RequestID,
		ExpiresAt: d.ExpiresAt,
	}
}

func toNetResult(d model.NetDecision) NetResult {
	return NetResult{
		Verdict:     string(d.Verdict),
		RuleID:      d.RuleID,
		Reason:      d.Reason,
		RedirectURL: d.RedirectURL,
		MaxSize:     d.MaxSize,
	}
}

func toRedaction(res redact.Result) Redaction {
	out := Redaction{Redacted: res.Redacted, Count: res.Count}
	seen := make(map[string]bool)
	for _, s := range res.Secrets {
		if !seen[s.Type] {
			seen[s.Type] = true
			out.Types = append(out.Types, s.Type)
		}
	}
	sort.Strings(out.Types)
	return out
}
