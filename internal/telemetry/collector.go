// Package telemetry keeps in-process counters for the gates and the
// redactor. Counters are plain atomics so recording never takes a lock on
// the evaluation path; only the per-rule hit map is mutex-guarded. A nil
// Collector is valid and counts nothing.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/trustgate/internal/model"
)

// Collector accumulates counts since construction.
type Collector struct {
	started time.Time

	toolTotal       atomic.Int64
	toolApproved    atomic.Int64
	toolRejected    atomic.Int64
	toolPending     atomic.Int64
	toolRateLimited atomic.Int64

	netTotal       atomic.Int64
	netBlocked     atomic.Int64
	netRateLimited atomic.Int64

	redactCalls  atomic.Int64
	secretsFound atomic.Int64

	mu       sync.Mutex
	ruleHits map[string]int64
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{
		started:  time.Now().UTC(),
		ruleHits: make(map[string]int64),
	}
}

// RecordToolDecision counts one ToolGate outcome.
func (c *Collector) RecordToolDecision(d model.Decision) {
	if c == nil {
		return
	}
	c.toolTotal.Add(1)
	switch d.Status {
	case model.StatusApproved, model.StatusAutoApproved:
		c.toolApproved.Add(1)
	case model.StatusPending:
		c.toolPending.Add(1)
	case model.StatusRejected:
		c.toolRejected.Add(1)
		if d.Code == model.RejectRateLimited {
			c.toolRateLimited.Add(1)
		}
	}
}

// RecordNetDecision counts one NetGate outcome and the rule that made it.
func (c *Collector) RecordNetDecision(d model.NetDecision) {
	if c == nil {
		return
	}
	c.netTotal.Add(1)
	switch d.Verdict {
	case model.VerdictBlock:
		c.netBlocked.Add(1)
	case model.VerdictRateLimit:
		c.netRateLimited.Add(1)
	}
	if d.RuleID != "" {
		c.mu.Lock()
		c.ruleHits[d.RuleID]++
		c.mu.Unlock()
	}
}

// RecordRedaction counts one Redact call and the secrets it found.
func (c *Collector) RecordRedaction(secrets int) {
	if c == nil {
		return
	}
	c.redactCalls.Add(1)
	c.secretsFound.Add(int64(secrets))
}

// ToolStats is the tool-side counter snapshot.
type ToolStats struct {
	Total       int64 `json:"total"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
	Pending     int64 `json:"pending"`
	RateLimited int64 `json:"rate_limited"`
}

// NetStats is the network-side counter snapshot.
type NetStats struct {
	Total       int64 `json:"total"`
	Blocked     int64 `json:"blocked"`
	RateLimited int64 `json:"rate_limited"`
}

// RedactionStats is the redactor counter snapshot.
type RedactionStats struct {
	Calls        int64 `json:"calls"`
	SecretsFound int64 `json:"secrets_found"`
}

// Stats is a point-in-time copy of every counter.
type Stats struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Tool          ToolStats        `json:"tool"`
	Net           NetStats         `json:"net"`
	Redaction     RedactionStats   `json:"redaction"`
	RuleHits      map[string]int64 `json:"rule_hits,omitempty"`
}

// Snapshot copies the counters. A nil collector reports zeros.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
		Tool: ToolStats{
			Total:       c.toolTotal.Load(),
			Approved:    c.toolApproved.Load(),
			Rejected:    c.toolRejected.Load(),
			Pending:     c.toolPending.Load(),
			RateLimited: c.toolRateLimited.Load(),
		},
		Net: NetStats{
			Total:       c.netTotal.Load(),
			Blocked:     c.netBlocked.Load(),
			RateLimited: c.netRateLimited.Load(),
		},
		Redaction: RedactionStats{
			Calls:        c.redactCalls.Load(),
			SecretsFound: c.secretsFound.Load(),
		},
	}
	c.mu.Lock()
	if len(c.ruleHits) > 0 {
		s.RuleHits = make(map[string]int64, len(c.ruleHits))
		for k, v := range c.ruleHits {
			s.RuleHits[k] = v
		}
	}
	c.mu.Unlock()
	return s
}
