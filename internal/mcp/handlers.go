package mcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/trustgate/internal/model"
)

// --- Input/Output types ---

// CheckToolInput defines parameters for the trustgate_check_tool tool.
type CheckToolInput struct {
	Tool   string         `json:"tool" jsonschema:"tool name to evaluate"`
	Params map[string]any `json:"params,omitempty" jsonschema:"tool call parameters"`
	Actor  string         `json:"actor,omitempty" jsonschema:"requesting agent identity"`
}

// CheckToolOutput contains the decision.
type CheckToolOutput struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Code      string `json:"code,omitempty"`
	Level     string `json:"level,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// FetchInput defines parameters for the trustgate_fetch tool.
type FetchInput struct {
	URL string `json:"url" jsonschema:"URL to fetch"`
}

// FetchOutput contains the response or block details.
type FetchOutput struct {
	Status     int               `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	Truncated  bool              `json:"truncated,omitempty"`
	FetchedURL string            `json:"fetched_url,omitempty"`
	Blocked    bool              `json:"blocked,omitempty"`
	Verdict    string            `json:"verdict,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	RuleID     string            `json:"rule_id,omitempty"`
}

// RedactInput defines parameters for the trustgate_redact tool.
type RedactInput struct {
	Text string `json:"text" jsonschema:"text to scrub for secrets"`
}

// RedactOutput contains the scrubbed text.
type RedactOutput struct {
	Redacted string   `json:"redacted"`
	Count    int      `json:"count"`
	Types    []string `json:"types,omitempty"`
}

// ApproveInput defines parameters for the trustgate_approve tool.
type ApproveInput struct {
	RequestID string `json:"request_id" jsonschema:"pending request id"`
	Actor     string `json:"actor,omitempty" jsonschema:"who is resolving the request"`
	Reject    bool   `json:"reject,omitempty" jsonschema:"deny instead of approve"`
	Reason    string `json:"reason,omitempty" jsonschema:"reason when rejecting"`
}

// ApproveOutput confirms the resolution.
type ApproveOutput struct {
	RequestID string `json:"request_id"`
	Tool      string `json:"tool,omitempty"`
	Status    string `json:"status"`
}

// PendingInput is empty, no parameters needed.
type PendingInput struct{}

// PendingOutput lists requests waiting for an operator.
type PendingOutput struct {
	Requests []PendingItem `json:"requests"`
}

// PendingItem describes a single held request.
type PendingItem struct {
	RequestID string `json:"request_id"`
	Tool      string `json:"tool"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// StatusInput is empty, no parameters needed.
type StatusInput struct{}

// StatusOutput is a flat operational summary.
type StatusOutput struct {
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ToolDecisions    int64  `json:"tool_decisions"`
	ToolRejected     int64  `json:"tool_rejected"`
	URLChecks        int64  `json:"url_checks"`
	URLBlocked       int64  `json:"url_blocked"`
	RedactionCalls   int64  `json:"redaction_calls"`
	SecretsFound     int64  `json:"secrets_found"`
	PendingApprovals int    `json:"pending_approvals"`
	ToolPolicies     int    `json:"tool_policies"`
	NetworkRules     int    `json:"network_rules"`
	SecretPatterns   int    `json:"secret_patterns"`
	RulesLoadedAt    string `json:"rules_loaded_at"`
	AuditPath        string `json:"audit_path,omitempty"`
}

// --- Handlers ---

func (s *Server) handleCheckTool(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckToolInput) (*mcpsdk.CallToolResult, CheckToolOutput, error) {
	if strings.TrimSpace(input.Tool) == "" {
		return nil, CheckToolOutput{}, fmt.Errorf("tool name is required")
	}

	r := model.NewExecutionRequest(input.Tool, input.Params)
	r.Actor = input.Actor

	d := s.guard.CheckTool(r)
	out := CheckToolOutput{
		Status: string(d.Status),
		Reason: d.Reason,
		Code:   string(d.Code),
		Level:  string(d.Level),
	}
	if d.Status == model.StatusPending {
		out.RequestID = d.RequestID
		out.ExpiresAt = d.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleFetch(ctx context.Context, req *mcpsdk.CallToolRequest, input FetchInput) (*mcpsdk.CallToolResult, FetchOutput, error) {
	d := s.guard.CheckURL(input.URL)
	if !d.Allowed() {
		out := FetchOutput{
			Blocked: true,
			Verdict: string(d.Verdict),
			Reason:  d.Reason,
			RuleID:  d.RuleID,
		}
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	target := input.URL
	if d.RedirectURL != "" {
		target = d.RedirectURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, FetchOutput{}, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, FetchOutput{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	limit := d.MaxSize
	if limit <= 0 {
		limit = defaultFetchCap
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, FetchOutput{}, fmt.Errorf("read response: %w", err)
	}

	out := FetchOutput{Status: resp.StatusCode, FetchedURL: target}
	if resp.Request != nil && resp.Request.URL != nil {
		out.FetchedURL = resp.Request.URL.String()
	}
	if int64(len(body)) > limit {
		body = body[:limit]
		out.Truncated = true
	}
	out.Body = string(body)

	out.Headers = make(map[string]string, len(resp.Header))
	for k, vv := range resp.Header {
		out.Headers[k] = strings.Join(vv, ", ")
	}
	return nil, out, nil
}

func (s *Server) handleRedact(ctx context.Context, req *mcpsdk.CallToolRequest, input RedactInput) (*mcpsdk.CallToolResult, RedactOutput, error) {
	res := s.guard.Redact(input.Text)

	seen := make(map[string]bool, 4)
	var types []string
	for _, sec := range res.Secrets {
		if !seen[sec.Type] {
			seen[sec.Type] = true
			types = append(types, sec.Type)
		}
	}
	sort.Strings(types)

	return nil, RedactOutput{
		Redacted: res.Redacted,
		Count:    res.Count,
		Types:    types,
	}, nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ApproveOutput, error) {
	actor := input.Actor
	if actor == "" {
		actor = "mcp"
	}

	var (
		d  model.Decision
		ok bool
	)
	if input.Reject {
		d, ok = s.guard.Reject(input.RequestID, actor, input.Reason)
	} else {
		d, ok = s.guard.Approve(input.RequestID, actor)
	}
	if !ok {
		return nil, ApproveOutput{}, fmt.Errorf("no pending request %q; it may have expired or been resolved", input.RequestID)
	}

	return nil, ApproveOutput{
		RequestID: d.RequestID,
		Tool:      d.Tool,
		Status:    string(d.Status),
	}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list := s.guard.Pending()

	items := make([]PendingItem, len(list))
	for i, pr := range list {
		items[i] = PendingItem{
			RequestID: pr.Decision.RequestID,
			Tool:      pr.Request.Tool,
			Reason:    pr.Decision.Reason,
			CreatedAt: pr.Decision.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt: pr.Decision.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	return nil, PendingOutput{Requests: items}, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st := s.guard.Status()

	return nil, StatusOutput{
		UptimeSeconds:    st.Stats.UptimeSeconds,
		ToolDecisions:    st.Stats.Tool.Total,
		ToolRejected:     st.Stats.Tool.Rejected,
		URLChecks:        st.Stats.Net.Total,
		URLBlocked:       st.Stats.Net.Blocked,
		RedactionCalls:   st.Stats.Redaction.Calls,
		SecretsFound:     st.Stats.Redaction.SecretsFound,
		PendingApprovals: st.PendingApprovals,
		ToolPolicies:     st.ToolPolicies,
		NetworkRules:     st.NetworkRules,
		SecretPatterns:   st.SecretPatterns,
		RulesLoadedAt:    st.RulesLoadedAt.UTC().Format(time.RFC3339),
		AuditPath:        st.AuditPath,
	}, nil
}
