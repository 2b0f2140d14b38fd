// Package redact scrubs secrets out of text before it crosses a trust
// boundary. Detection runs against the secret patterns of the active rule
// snapshot; each hit is rewritten in place according to the pattern's
// redaction level: left alone, partially masked, replaced with a typed
// placeholder, or swapped for a truncated SHA-256 fingerprint.
//
// Replacement is applied back to front so earlier spans stay valid while
// later ones are rewritten. The output is stable: running a result through
// Redact again yields the same text, because no transform produces a string
// that the default patterns can match.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/ring"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/telemetry"
)

// scanErrorToken replaces the whole input when scanning fails. Unscanned
// text must never leave the redactor.
const scanErrorToken = "[REDACTED:SCAN_ERROR]"

const defaultHistory = 1000

// Detected describes one secret found in the input. It carries the
// replacement written into the output, never the original value.
type Detected struct {
	RuleID     string               `json:"rule_id"`
	Type       string               `json:"type"`
	Confidence float64              `json:"confidence"`
	Level      model.RedactionLevel `json:"level"`
	Start      int                  `json:"start"`
	End        int                  `json:"end"`
	Redacted   string               `json:"redacted"`
}

// Result is the outcome of one redaction pass. Original is returned to the
// caller for diffing but is never serialized.
type Result struct {
	Original string        `json:"-"`
	Redacted string        `json:"redacted"`
	Secrets  []Detected    `json:"secrets,omitempty"`
	Count    int           `json:"count"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Event is one history entry. It records how much was found, not what.
type Event struct {
	Time    time.Time     `json:"time"`
	Count   int           `json:"count"`
	Types   []string      `json:"types,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Options configures a Redactor. Zero values select no-op metrics, a no-op
// logger, and the default history size.
type Options struct {
	Metrics     *telemetry.Collector
	Logger      *zap.Logger
	HistorySize int
}

// Redactor applies the active secret patterns to text. Safe for concurrent
// use. It remembers a fingerprint of every distinct secret it has seen so
// operators can tell how many unique values leaked, without storing any.
type Redactor struct {
	store   *rules.Store
	metrics *telemetry.Collector
	logger  *zap.Logger
	history *ring.Buffer[Event]

	mu      sync.Mutex
	digests map[string]struct{}
}

// New returns a Redactor reading patterns from store.
func New(store *rules.Store, opts Options) *Redactor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	size := opts.HistorySize
	if size <= 0 {
		size = defaultHistory
	}
	return &Redactor{
		store:   store,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		history: ring.New[Event](size),
		digests: make(map[string]struct{}),
	}
}

// Redact scans text and rewrites every detected secret according to its
// pattern's redaction level. If scanning panics the whole input is replaced
// with a scan-error token; the caller never receives unscanned text.
func (r *Redactor) Redact(text string) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("redaction failed, output suppressed", zap.Any("panic", p))
			res = Result{Original: text, Redacted: scanErrorToken, Elapsed: time.Since(start)}
		}
	}()

	snap := r.store.Snapshot()
	found := snap.Scanner.DetectSecrets(text)

	res = Result{Original: text, Redacted: text}
	if len(found) > 0 {
		secrets := make([]Detected, len(found))
		for i, s := range found {
			secrets[i] = Detected{
				RuleID:     s.RuleID,
				Type:       s.Type,
				Confidence: s.Confidence,
				Level:      s.Level,
				Start:      s.Start,
				End:        s.End,
				Redacted:   Apply(s.Level, s.Type, s.Value),
			}
		}
		// Spans are sorted ascending and non-overlapping; splicing from the
		// end keeps earlier offsets valid.
		out := text
		for i := len(found) - 1; i >= 0; i-- {
			out = out[:found[i].Start] + secrets[i].Redacted + out[found[i].End:]
		}
		res.Redacted = out
		res.Secrets = secrets
		res.Count = len(secrets)

		r.mu.Lock()
		for _, s := range found {
			r.digests[digestKey(s.Value)] = struct{}{}
		}
		r.mu.Unlock()
	}

	res.Elapsed = time.Since(start)
	r.history.Append(Event{
		Time:    time.Now(),
		Count:   res.Count,
		Types:   typeList(res.Secrets),
		Elapsed: res.Elapsed,
	})
	r.metrics.RecordRedaction(res.Count)
	if res.Count > 0 {
		r.logger.Debug("secrets redacted",
			zap.Int("count", res.Count),
			zap.Strings("types", typeList(res.Secrets)))
	}
	return res
}

// History returns up to n most recent redaction events, oldest first.
func (r *Redactor) History(n int) []Event {
	return r.history.Last(n)
}

// DigestCount reports how many distinct secret values have been seen since
// startup.
func (r *Redactor) DigestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.digests)
}

func digestKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func typeList(secrets []Detected) []string {
	if len(secrets) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(secrets))
	var types []string
	for _, s := range secrets {
		if _, ok := seen[s.Type]; ok {
			continue
		}
		seen[s.Type] = struct{}{}
		types = append(types, s.Type)
	}
	sort.Strings(types)
	return types
}
