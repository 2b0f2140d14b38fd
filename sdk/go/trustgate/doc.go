// Package trustgate provides in-process trust boundary enforcement for Go
// agent frameworks. It wraps tool functions, routes outbound HTTP through
// the network rules, and masks secrets in text before it leaves the
// process — the same engines the trustgate CLI and MCP server run, linked
// directly for zero-subprocess overhead.
//
// Usage:
//
//	tg := trustgate.New(trustgate.WithActor("billing-agent"))
//	defer tg.Close()
//
//	wrapped := tg.Wrap(myTool)
//	out, err := wrapped(ctx, trustgate.Call{
//	    Tool:   "file_delete",
//	    Params: map[string]any{"path": "/tmp/scratch"},
//	})
//	var blocked *trustgate.BlockedError
//	if errors.As(err, &blocked) && blocked.Pending() {
//	    // Surface blocked.RequestID to an operator; once they approve,
//	    // the call is authorized and audited — run the tool directly.
//	}
//
// External users import github.com/ppiankov/trustgate/sdk/go/trustgate.
package trustgate
