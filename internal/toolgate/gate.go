// Package toolgate decides whether an agent may execute a named tool with
// given parameters. A request walks a fixed pipeline — policy lookup,
// dry-run enforcement, hourly budget, parameter validation, dangerous
// pattern scan — and either terminates in a rejection, passes straight
// through, or parks in the approval workbench for an operator. Unknown
// tools are rejected; there is no permissive fallback.
package toolgate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/ratelimit"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/scan"
	"github.com/ppiankov/trustgate/internal/telemetry"
)

// toolWindow is the sliding window behind per-tool execution budgets.
const toolWindow = time.Hour

// defaultApprovalTTL bounds how long a pending request waits for an
// operator before it expires into a rejection.
const defaultApprovalTTL = 15 * time.Minute

// Options configures a Gate. Zero values get working defaults; pass a
// shared Limiter or Collector to pool budgets and counters with other
// gates. MirrorDir, when set, lets another process resolve this gate's
// pending approvals through JSON files.
type Options struct {
	ApprovalTTL time.Duration
	MirrorDir   string
	Limiter     *ratelimit.Limiter
	Metrics     *telemetry.Collector
	Logger      *zap.Logger
}

// Gate evaluates execution requests against the tool policy snapshot.
type Gate struct {
	store   *rules.Store
	limiter *ratelimit.Limiter
	bench   *Workbench
	metrics *telemetry.Collector
	logger  *zap.Logger
}

// New returns a Gate over the store's tool policies.
func New(store *rules.Store, opts Options) *Gate {
	if opts.ApprovalTTL <= 0 {
		opts.ApprovalTTL = defaultApprovalTTL
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gate{
		store:   store,
		limiter: opts.Limiter,
		bench:   NewWorkbench(opts.ApprovalTTL, opts.MirrorDir, opts.Logger),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Evaluate decides one execution request. It never panics and never
// returns an error: anything that goes wrong inside evaluation is a
// rejection.
func (g *Gate) Evaluate(req model.ExecutionRequest) (d model.Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = model.Decision{
				ID:        uuid.NewString(),
				RequestID: req.ID,
				Tool:      req.Tool,
				Status:    model.StatusRejected,
				Code:      model.RejectInternal,
				Reason:    fmt.Sprintf("internal error: %v", r),
				Level:     model.LevelCritical,
				Actor:     req.Actor,
				CreatedAt: time.Now().UTC(),
			}
			g.record(d)
		}
	}()
	d = g.evaluate(req)
	g.record(d)
	return d
}

// Approve resolves a pending request. True exactly once per request ID.
func (g *Gate) Approve(id, actor string) (model.Decision, bool) {
	return g.bench.Approve(id, actor)
}

// Reject resolves a pending request as denied. True exactly once per
// request ID.
func (g *Gate) Reject(id, actor, reason string) (model.Decision, bool) {
	return g.bench.Reject(id, actor, reason)
}

// Pending lists requests waiting for an operator, oldest first.
func (g *Gate) Pending() []PendingRequest {
	return g.bench.Pending()
}

// Sweep expires overdue approvals and reconciles the mirror directory.
func (g *Gate) Sweep() []model.Decision {
	return g.bench.Sweep()
}

func (g *Gate) record(d model.Decision) {
	g.metrics.RecordToolDecision(d)
	g.logger.Debug("tool decision",
		zap.String("tool", d.Tool),
		zap.String("status", string(d.Status)),
		zap.String("code", string(d.Code)),
		zap.String("reason", d.Reason))
}

// evaluate runs the decision pipeline. Stage order is load-bearing: the
// budget check sits before parameter validation so a retry storm of
// invalid requests still exhausts the budget, and the pattern scan runs
// before approval routing so an operator is never asked to bless obvious
// injection.
func (g *Gate) evaluate(req model.ExecutionRequest) model.Decision {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	snap := g.store.Snapshot()

	p := snap.Policy(req.Tool)
	if p == nil {
		return g.reject(req, model.LevelCritical, model.RejectUnknownTool,
			fmt.Sprintf("unknown tool %q", req.Tool))
	}
	if !p.Allowed {
		return g.reject(req, p.Level, model.RejectDisabled,
			fmt.Sprintf("tool %q is disabled by policy", req.Tool))
	}
	if p.DryRunOnly && !req.DryRun {
		return g.reject(req, p.Level, model.RejectDryRunRequired,
			fmt.Sprintf("tool %q only permits dry-run requests", req.Tool))
	}
	if p.MaxExecPerHour > 0 && !g.limiter.Allow("tool:"+req.Tool, toolWindow, p.MaxExecPerHour) {
		return g.reject(req, p.Level, model.RejectRateLimited,
			fmt.Sprintf("hourly budget of %d executions spent for %q, retry later", p.MaxExecPerHour, req.Tool))
	}
	if err := p.ValidateParams(req.Params); err != nil {
		return g.reject(req, p.Level, model.RejectParamViolation, err.Error())
	}
	if findings := snap.Scanner.Classify(paramsText(req.Params)); len(findings) > 0 {
		return g.reject(req, p.Level, model.RejectDangerousPattern, findingSummary(findings))
	}

	d := g.newDecision(req, p.Level)
	if p.RequiresApproval {
		d.Status = model.StatusPending
		d.Reason = fmt.Sprintf("tool %q requires manual approval", req.Tool)
		return g.bench.Add(req, d)
	}
	if p.Level == model.LevelSafe || p.Level == model.LevelLow {
		d.Status = model.StatusAutoApproved
		d.Reason = fmt.Sprintf("auto-approved (%s)", p.Level)
		return d
	}
	d.Status = model.StatusApproved
	d.Reason = "approved by policy"
	return d
}

func (g *Gate) newDecision(req model.ExecutionRequest, level model.SecurityLevel) model.Decision {
	return model.Decision{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Tool:      req.Tool,
		Level:     level,
		Actor:     req.Actor,
		CreatedAt: time.Now().UTC(),
	}
}

func (g *Gate) reject(req model.ExecutionRequest, level model.SecurityLevel, code model.RejectCode, reason string) model.Decision {
	d := g.newDecision(req, level)
	d.Status = model.StatusRejected
	d.Code = code
	d.Reason = reason
	return d
}

// paramsText serializes the parameter set for the pattern scan. JSON keeps
// the text close to what the tool would receive; HTML escaping is off so
// shell operators like && survive for the scanner. Parameters that defeat
// the encoder fall back to fmt formatting so nothing escapes the scan.
func paramsText(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return fmt.Sprint(params)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func findingSummary(findings []scan.Finding) string {
	parts := make([]string, 0, 4)
	for i, f := range findings {
		if i == 3 {
			parts = append(parts, fmt.Sprintf("and %d more", len(findings)-3))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", f.RuleID, f.Category))
	}
	return "dangerous pattern in parameters: " + strings.Join(parts, ", ")
}
