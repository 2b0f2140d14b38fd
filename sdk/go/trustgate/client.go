package trustgate

import (
	"github.com/ppiankov/trustgate/internal/guard"
	"github.com/ppiankov/trustgate/internal/model"
)

// Client is the in-process handle on the trust boundary. Safe for
// concurrent use.
type Client struct {
	g       *guard.Guard
	actor   string
	session string
	owned   bool // whether Close should tear down the guard
}

// New creates a Client. Construction never fails: an unreadable config
// falls back to defaults and missing rule documents are synthesized.
func New(opts ...Option) *Client {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	g := cfg.guard
	owned := false
	if g == nil {
		g = guard.New(guard.Options{ConfigPath: cfg.configPath, Logger: cfg.logger})
		owned = true
	}

	return &Client{g: g, actor: cfg.actor, session: cfg.session, owned: owned}
}

// Close releases the audit log when the client owns its guard.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.g.Close()
}

// CheckTool evaluates one tool call without executing anything. A pending
// result is mirrored to the approval directory for operator tooling.
func (c *Client) CheckTool(call Call) Result {
	d := c.g.CheckTool(c.request(call))
	if d.Status == model.StatusPending {
		c.g.SweepApprovals()
	}
	return toResult(d)
}

// CheckURL evaluates one outbound URL without sending anything.
func (c *Client) CheckURL(rawURL string) NetResult {
	return toNetResult(c.g.CheckURL(rawURL))
}

// Redact masks secrets in text and reports what was found.
func (c *Client) Redact(text string) Redaction {
	return toRedaction(c.g.Redact(text))
}

// RedactString masks secrets in text, returning just the safe form.
func (c *Client) RedactString(text string) string {
	return c.g.Redact(text).Redacted
}

// Pending lists tool calls held for approval, oldest first.
func (c *Client) Pending() []Approval {
	held := c.g.Pending()
	out := make([]Approval, 0, len(held))
	for _, pr := range held {
		out = append(out, Approval{
			RequestID: pr.Decision.RequestID,
			Tool:      pr.Request.Tool,
			Reason:    pr.Decision.Reason,
			CreatedAt: pr.Decision.CreatedAt,
			ExpiresAt: pr.Decision.ExpiresAt,
		})
	}
	return out
}

// Approve resolves a pending call. It reports false when the request is
// unknown, expired, or already resolved.
func (c *Client) Approve(requestID, actor string) bool {
	_, ok := c.g.Approve(requestID, actor)
	return ok
}

// Reject resolves a pending call as rejected.
func (c *Client) Reject(requestID, actor, reason string) bool {
	_, ok := c.g.Reject(requestID, actor, reason)
	return ok
}

func (c *Client) request(call Call) model.ExecutionRequest {
	req := model.NewExecutionRequest(call.Tool, call.Params)
	req.Actor = call.Actor
	if req.Actor == "" {
		req.Actor = c.actor
	}
	req.Session = c.session
	req.DryRun = call.DryRun
	return req
}
