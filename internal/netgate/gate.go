package netgate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/ratelimit"
	"github.com/ppiankov/trustgate/internal/ring"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/telemetry"
)

// hostWindow is the sliding window behind per-host rate limits.
const hostWindow = time.Minute

// defaultHistory bounds the decision ring when Options does not say.
const defaultHistory = 1000

// Options configures a Gate. Zero values get working defaults; pass a
// shared Limiter or Collector to pool budgets and counters with other
// gates.
type Options struct {
	Limiter     *ratelimit.Limiter
	Metrics     *telemetry.Collector
	Logger      *zap.Logger
	HistorySize int
}

// Gate evaluates URLs against the network rule snapshot.
type Gate struct {
	store   *rules.Store
	limiter *ratelimit.Limiter
	metrics *telemetry.Collector
	logger  *zap.Logger
	history *ring.Buffer[model.NetDecision]
}

// New returns a Gate over the store's rules.
func New(store *rules.Store, opts Options) *Gate {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistory
	}
	return &Gate{
		store:   store,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		history: ring.New[model.NetDecision](opts.HistorySize),
	}
}

// Evaluate decides whether rawURL may be fetched. It never panics and
// never returns an error: anything that goes wrong inside evaluation is a
// block decision.
func (g *Gate) Evaluate(rawURL string) (d model.NetDecision) {
	defer func() {
		if r := recover(); r != nil {
			d = newDecision(rawURL, "", model.VerdictBlock, "", fmt.Sprintf("internal error: %v", r))
			g.record(d)
		}
	}()
	d = g.evaluate(rawURL)
	g.record(d)
	return d
}

// History returns the most recent n decisions, oldest first. n <= 0
// returns everything retained.
func (g *Gate) History(n int) []model.NetDecision {
	if n <= 0 {
		return g.history.Snapshot()
	}
	return g.history.Last(n)
}

func (g *Gate) record(d model.NetDecision) {
	g.history.Append(d)
	g.metrics.RecordNetDecision(d)
	g.logger.Debug("net decision",
		zap.String("host", d.Host),
		zap.String("verdict", string(d.Verdict)),
		zap.String("rule", d.RuleID),
		zap.String("reason", d.Reason))
}

// evaluate runs the decision pipeline. Stages short-circuit on the first
// failure; the host screens run before rule lookup so no allow rule can
// override them.
func (g *Gate) evaluate(rawURL string) model.NetDecision {
	snap := g.store.Snapshot()

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return newDecision(rawURL, "", model.VerdictBlock, "", "malformed URL or missing host")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))

	if rep := snap.Scanner.CheckHost(host); rep.Unsafe {
		return newDecision(rawURL, host, model.VerdictBlock, "",
			"confusable characters in host: "+strings.Join(rep.Confusables, "; "))
	}
	if reason, suspicious := snap.Scanner.SuspiciousHost(host); suspicious {
		return newDecision(rawURL, host, model.VerdictBlock, "", reason)
	}

	r := Match(snap.Network, host, u.Scheme)
	if r == nil {
		return newDecision(rawURL, host, model.VerdictBlock, "", "no matching rule")
	}
	if !r.Enabled {
		return newDecision(rawURL, host, model.VerdictBlock, r.ID, fmt.Sprintf("rule %s is disabled", r.ID))
	}
	if r.Action == model.ActionBlock {
		reason := r.Reason
		if reason == "" {
			reason = "blocked by rule " + r.ID
		}
		return newDecision(rawURL, host, model.VerdictBlock, r.ID, reason)
	}

	if r.RateLimit > 0 && !g.limiter.Allow("host:"+host, hostWindow, r.RateLimit) {
		return newDecision(rawURL, host, model.VerdictRateLimit, r.ID,
			fmt.Sprintf("rate limit %d/min exhausted for %s, retry later", r.RateLimit, host))
	}

	if len(r.AllowedPorts) > 0 && u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil || !portAllowed(r.AllowedPorts, port) {
			return newDecision(rawURL, host, model.VerdictBlock, r.ID,
				fmt.Sprintf("port %s not allowed by rule %s", u.Port(), r.ID))
		}
	}

	reason := "allowed by rule " + r.ID
	if r.Action == model.ActionRedirect {
		reason = "redirected by rule " + r.ID
	}
	d := newDecision(rawURL, host, model.VerdictAllow, r.ID, reason)
	d.MaxSize = r.MaxSizeBytes
	if r.Action == model.ActionRedirect {
		d.RedirectURL = r.RedirectURL
	}
	return d
}

func newDecision(rawURL, host string, verdict model.Verdict, ruleID, reason string) model.NetDecision {
	return model.NetDecision{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Host:      host,
		Verdict:   verdict,
		RuleID:    ruleID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

func portAllowed(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}
