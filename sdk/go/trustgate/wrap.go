package trustgate

import (
	"context"

	"github.com/ppiankov/trustgate/internal/model"
)

// ToolFunc is the function signature that Wrap guards.
type ToolFunc func(ctx context.Context, call Call) (any, error)

// Wrap returns a ToolFunc that checks the gate before calling fn. When the
// gate does not allow the call, fn is never invoked and the error is a
// *BlockedError; a pending one carries the RequestID an operator needs to
// resolve it. Wrap never waits for approval — once an operator approves,
// the call is authorized and audited, and the caller runs the tool.
func (c *Client) Wrap(fn ToolFunc) ToolFunc {
	return func(ctx context.Context, call Call) (any, error) {
		d := c.g.CheckTool(c.request(call))

		switch d.Status {
		case model.StatusRejected:
			return nil, &BlockedError{
				Tool:      call.Tool,
				Status:    Status(d.Status),
				Code:      string(d.Code),
				Reason:    d.Reason,
				RequestID: d.RequestID,
			}

		case model.StatusPending:
			// Expose the request for approve/deny before returning.
			c.g.SweepApprovals()
			return nil, &BlockedError{
				Tool:      call.Tool,
				Status:    Status(d.Status),
				Reason:    d.Reason,
				RequestID: d.RequestID,
				ExpiresAt: d.ExpiresAt,
			}
		}

		return fn(ctx, call)
	}
}
