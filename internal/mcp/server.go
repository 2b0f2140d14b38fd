// Package mcp exposes the gate as Model Context Protocol tools over
// stdio, so MCP-speaking agents get decisions without linking the SDK.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/guard"
)

const (
	fetchTimeout    = 30 * time.Second
	maxRedirects    = 5
	defaultFetchCap = int64(1 << 20) // response cap when the rule sets no max_size
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string       // gate config path; empty uses the default
	Guard      *guard.Guard // pre-built guard; overrides ConfigPath
	Logger     *zap.Logger
}

// Server wraps the MCP SDK server around a guard.
type Server struct {
	mcpServer *mcpsdk.Server
	guard     *guard.Guard
	client    *http.Client
}

// New creates the MCP server. A nil cfg.Guard builds one from ConfigPath.
func New(cfg Config) *Server {
	g := cfg.Guard
	if g == nil {
		g = guard.New(guard.Options{ConfigPath: cfg.ConfigPath, Logger: cfg.Logger})
	}

	s := &Server{guard: g}

	// Every redirect hop is re-checked: a permitted host must not bounce
	// the agent to a blocked one.
	s.client = &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if d := g.CheckURL(req.URL.String()); !d.Allowed() {
				return fmt.Errorf("redirect to %s blocked: %s", req.URL, d.Reason)
			}
			return nil
		},
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "trustgate",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run serves MCP on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the underlying guard.
func (s *Server) Close() error {
	return s.guard.Close()
}

// registerTools adds all trustgate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_check_tool",
		Description: "Evaluate a tool call against the tool policies without executing it. Pending decisions carry a request_id for trustgate_approve.",
	}, s.handleCheckTool)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_fetch",
		Description: "Fetch a URL (GET) through the network rules. Blocked URLs return an error with the reason; responses are capped by the matching rule's max_size.",
	}, s.handleFetch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_redact",
		Description: "Scrub secrets from text before it leaves the trust boundary. Returns the redacted text and what was found.",
	}, s.handleRedact)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_approve",
		Description: "Resolve a pending tool request by request_id. Set reject to true to deny it instead.",
	}, s.handleApprove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_pending",
		Description: "List tool requests waiting for an operator decision.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trustgate_status",
		Description: "Report gate counters, rule counts, and pending approvals.",
	}, s.handleStatus)
}
