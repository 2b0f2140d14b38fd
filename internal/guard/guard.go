// Package guard assembles the trust boundary behind a single handle: the
// tool gate, the network gate and the redactor share one rule store, one
// rate limiter and one telemetry collector. Every decision that crosses the
// guard is appended to the hash-chained audit log and offered to the alert
// dispatcher; both are best-effort and never change the decision itself.
package guard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/alert"
	"github.com/ppiankov/trustgate/internal/audit"
	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/netgate"
	"github.com/ppiankov/trustgate/internal/ratelimit"
	"github.com/ppiankov/trustgate/internal/redact"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/telemetry"
	"github.com/ppiankov/trustgate/internal/toolgate"
)

// Options configures Guard construction. Config takes precedence over
// ConfigPath; when both are zero the default config file location is used.
type Options struct {
	ConfigPath string
	Config     *Config
	Logger     *zap.Logger
}

// Guard is the process-wide trust boundary handle. Construct one with New
// and share it; all methods are safe for concurrent use.
type Guard struct {
	cfg      *Config
	logger   *zap.Logger
	store    *rules.Store
	limiter  *ratelimit.Limiter
	metrics  *telemetry.Collector
	tools    *toolgate.Gate
	net      *netgate.Gate
	redactor *redact.Redactor
	auditLog *audit.Log
	alerts   *alert.Dispatcher
}

// New builds a Guard. Construction never fails: unreadable gate config
// falls back to defaults, absent rule documents are synthesized and
// persisted, and an unavailable audit log only disables auditing.
func New(opts Options) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := LoadConfig(opts.ConfigPath)
		if err != nil {
			logger.Warn("gate config unreadable, using defaults", zap.Error(err))
			loaded = DefaultConfig()
		} else {
			writeConfigTemplate(opts.ConfigPath, logger)
		}
		cfg = loaded
	}

	paths := cfg.RulePaths()
	if written, err := rules.WriteTemplates(paths); err != nil {
		logger.Warn("could not persist default rule documents", zap.Error(err))
	} else if len(written) > 0 {
		logger.Info("wrote default rule documents", zap.Strings("files", written))
	}

	store := rules.Open(paths, logger)
	limiter := ratelimit.New()
	metrics := telemetry.New()

	auditLog, err := audit.Open(cfg.AuditFile())
	if err != nil {
		logger.Warn("audit log unavailable, decisions will not be recorded", zap.Error(err))
		auditLog = nil
	}

	g := &Guard{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		limiter:  limiter,
		metrics:  metrics,
		auditLog: auditLog,
		alerts:   alert.NewDispatcher(cfg.Webhooks),
	}
	g.tools = toolgate.New(store, toolgate.Options{
		ApprovalTTL: cfg.approvalTTL(),
		MirrorDir:   cfg.MirrorDir(),
		Limiter:     limiter,
		Metrics:     metrics,
		Logger:      logger,
	})
	g.net = netgate.New(store, netgate.Options{
		Limiter:     limiter,
		Metrics:     metrics,
		Logger:      logger,
		HistorySize: cfg.HistorySize,
	})
	g.redactor = redact.New(store, redact.Options{
		Metrics:     metrics,
		Logger:      logger,
		HistorySize: cfg.HistorySize,
	})
	return g
}

// writeConfigTemplate persists the commented default gate config when the
// file does not exist yet. Best-effort.
func writeConfigTemplate(path string, logger *zap.Logger) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return
	}
	if err := rules.WriteFileAtomic(path, []byte(DefaultConfigYAML()), 0o644); err != nil {
		logger.Warn("could not persist default gate config", zap.Error(err))
		return
	}
	logger.Info("wrote default gate config", zap.String("file", path))
}

// CheckTool evaluates one execution request, then audits and alerts on the
// outcome.
func (g *Guard) CheckTool(req model.ExecutionRequest) model.Decision {
	d := g.tools.Evaluate(req)
	g.record(audit.Entry{
		Engine:    audit.EngineTool,
		Subject:   d.Tool,
		Decision:  string(d.Status),
		Reason:    d.Reason,
		RequestID: d.RequestID,
		Actor:     d.Actor,
	})
	g.dispatch(alert.Event{
		Engine:    audit.EngineTool,
		Subject:   d.Tool,
		Decision:  string(d.Status),
		Reason:    d.Reason,
		RequestID: d.RequestID,
	})
	return d
}

// CheckURL evaluates one outbound URL, then audits and alerts on the
// outcome.
func (g *Guard) CheckURL(rawURL string) model.NetDecision {
	d := g.net.Evaluate(rawURL)
	g.record(audit.Entry{
		Engine:   audit.EngineNet,
		Subject:  d.URL,
		Decision: string(d.Verdict),
		Reason:   d.Reason,
		RuleID:   d.RuleID,
	})
	g.dispatch(alert.Event{
		Engine:   audit.EngineNet,
		Subject:  d.URL,
		Decision: string(d.Verdict),
		Reason:   d.Reason,
		RuleID:   d.RuleID,
	})
	return d
}

// Redact scrubs secrets from text. Only passes that found something are
// audited; the entry records counts and types, never values.
func (g *Guard) Redact(text string) redact.Result {
	res := g.redactor.Redact(text)
	if res.Count > 0 {
		types := make([]string, 0, 4)
		seen := make(map[string]bool, 4)
		for _, s := range res.Secrets {
			if !seen[s.Type] {
				seen[s.Type] = true
				types = append(types, s.Type)
			}
		}
		g.record(audit.Entry{
			Engine:   audit.EngineRedact,
			Subject:  strings.Join(types, ","),
			Decision: "redacted",
			Reason:   plural(res.Count, "secret"),
		})
	}
	return res
}

// Approve resolves a pending request. Returns false when the id is
// unknown, already resolved, or expired.
func (g *Guard) Approve(id, actor string) (model.Decision, bool) {
	d, ok := g.tools.Approve(id, actor)
	if ok {
		g.auditResolution(d)
	}
	return d, ok
}

// Reject resolves a pending request with a rejection.
func (g *Guard) Reject(id, actor, reason string) (model.Decision, bool) {
	d, ok := g.tools.Reject(id, actor, reason)
	if ok {
		g.auditResolution(d)
	}
	return d, ok
}

// Pending lists unresolved requests, oldest first.
func (g *Guard) Pending() []toolgate.PendingRequest {
	return g.tools.Pending()
}

// SweepApprovals expires overdue requests and reconciles the approval
// mirror directory. Returns how many requests the sweep resolved.
func (g *Guard) SweepApprovals() int {
	resolved := g.tools.Sweep()
	for _, d := range resolved {
		g.auditResolution(d)
	}
	return len(resolved)
}

func (g *Guard) auditResolution(d model.Decision) {
	g.record(audit.Entry{
		Engine:    audit.EngineApproval,
		Subject:   d.Tool,
		Decision:  string(d.Status),
		Reason:    d.Reason,
		RequestID: d.RequestID,
		Actor:     d.ResolvedBy,
	})
	g.dispatch(alert.Event{
		Engine:    audit.EngineApproval,
		Subject:   d.Tool,
		Decision:  string(d.Status),
		Reason:    d.Reason,
		RequestID: d.RequestID,
	})
}

// AddRule appends a network rule and persists the document.
func (g *Guard) AddRule(r rules.NetworkRule) error {
	return g.store.AddNetworkRule(r)
}

// RemoveRule deletes a network rule by id.
func (g *Guard) RemoveRule(id string) error {
	return g.store.RemoveNetworkRule(id)
}

// EnableRule re-enables a disabled network rule.
func (g *Guard) EnableRule(id string) error {
	return g.store.SetNetworkRuleEnabled(id, true)
}

// DisableRule disables a network rule without deleting it. A disabled rule
// still claims its match; it does not fall through to later rules.
func (g *Guard) DisableRule(id string) error {
	return g.store.SetNetworkRuleEnabled(id, false)
}

// Rules lists the raw network rules in evaluation order.
func (g *Guard) Rules() []rules.NetworkRule {
	return g.store.NetworkRules()
}

// Reload re-reads every rule document. On failure the previous snapshot
// stays live.
func (g *Guard) Reload() error {
	if err := g.store.Reload(); err != nil {
		g.logger.Warn("rule reload failed, keeping previous snapshot", zap.Error(err))
		return err
	}
	return nil
}

// NetHistory returns up to n recent network decisions, oldest first.
func (g *Guard) NetHistory(n int) []model.NetDecision {
	return g.net.History(n)
}

// RedactHistory returns up to n recent redaction events, oldest first.
func (g *Guard) RedactHistory(n int) []redact.Event {
	return g.redactor.History(n)
}

// AuditPath returns the decision log location, or "" when auditing is
// disabled.
func (g *Guard) AuditPath() string {
	if g.auditLog == nil {
		return ""
	}
	return g.auditLog.Path()
}

// Status is a point-in-time operational summary.
type Status struct {
	Stats            telemetry.Stats `json:"stats"`
	PendingApprovals int             `json:"pending_approvals"`
	ToolPolicies     int             `json:"tool_policies"`
	NetworkRules     int             `json:"network_rules"`
	SecretPatterns   int             `json:"secret_patterns"`
	DistinctSecrets  int             `json:"distinct_secrets"`
	RulesLoadedAt    time.Time       `json:"rules_loaded_at"`
	AuditPath        string          `json:"audit_path,omitempty"`
}

// Status reports counters and rule counts for the running guard.
func (g *Guard) Status() Status {
	snap := g.store.Snapshot()
	return Status{
		Stats:            g.metrics.Snapshot(),
		PendingApprovals: len(g.tools.Pending()),
		ToolPolicies:     len(snap.Tools),
		NetworkRules:     len(snap.Network),
		SecretPatterns:   len(snap.Scanner.SecretRules()),
		DistinctSecrets:  g.redactor.DigestCount(),
		RulesLoadedAt:    snap.LoadedAt,
		AuditPath:        g.AuditPath(),
	}
}

// Close releases the audit log. The guard itself holds no other resources.
func (g *Guard) Close() error {
	if g.auditLog == nil {
		return nil
	}
	return g.auditLog.Close()
}

func (g *Guard) record(e audit.Entry) {
	if g.auditLog == nil {
		return
	}
	if err := g.auditLog.Record(e); err != nil {
		g.logger.Warn("audit append failed", zap.Error(err))
	}
}

func (g *Guard) dispatch(e alert.Event) {
	if g.alerts == nil {
		return
	}
	e.Timestamp = time.Now().UTC().Format(audit.TimestampFormat)
	g.alerts.Dispatch(e)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
