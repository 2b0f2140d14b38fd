package toolgate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/rules"
)

// validRequestID matches the request IDs the workbench will mirror to
// disk. Anything else never becomes a file name.
var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// PendingRequest pairs a held request with its pending decision, giving an
// operator everything needed to rule on it.
type PendingRequest struct {
	Request  model.ExecutionRequest `json:"request"`
	Decision model.Decision         `json:"decision"`
}

type entry struct {
	req      model.ExecutionRequest
	dec      model.Decision
	mirrored bool
}

// Workbench holds requests awaiting manual approval. Approve and Reject
// resolve an entry exactly once; entries past their TTL expire into
// rejections on the next access or sweep. When a mirror directory is
// configured, Sweep writes one JSON file per pending request and picks up
// status flips made to those files by another process, so a CLI can
// approve what a long-running server is holding. Evaluation-path methods
// never touch the disk.
type Workbench struct {
	mu      sync.Mutex
	pending map[string]*entry
	expired []model.Decision // produced by pruning, drained by Sweep
	stale   []string         // request IDs whose mirror files are obsolete
	ttl     time.Duration
	dir     string
	logger  *zap.Logger
}

// NewWorkbench returns a workbench whose entries expire after ttl. An
// empty dir disables mirroring.
func NewWorkbench(ttl time.Duration, dir string, logger *zap.Logger) *Workbench {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workbench{
		pending: make(map[string]*entry),
		ttl:     ttl,
		dir:     dir,
		logger:  logger,
	}
}

// Add holds a request and stamps its decision with the expiry deadline.
// The returned decision carries ExpiresAt.
func (wb *Workbench) Add(req model.ExecutionRequest, dec model.Decision) model.Decision {
	dec.ExpiresAt = time.Now().UTC().Add(wb.ttl)

	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.pending[req.ID] = &entry{req: req, dec: dec}
	return dec
}

// Approve resolves a pending request as approved. It returns the terminal
// decision and true exactly once; unknown, expired, or already-resolved
// IDs return false with no side effects.
func (wb *Workbench) Approve(id, actor string) (model.Decision, bool) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.pruneLocked(time.Now().UTC())
	return wb.resolveLocked(id, model.StatusApproved, "", actor, "manually approved")
}

// Reject resolves a pending request as rejected.
func (wb *Workbench) Reject(id, actor, reason string) (model.Decision, bool) {
	if reason == "" {
		reason = "manually rejected"
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.pruneLocked(time.Now().UTC())
	return wb.resolveLocked(id, model.StatusRejected, model.RejectDenied, actor, reason)
}

// Pending returns the held requests, oldest first.
func (wb *Workbench) Pending() []PendingRequest {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.pruneLocked(time.Now().UTC())

	out := make([]PendingRequest, 0, len(wb.pending))
	for _, e := range wb.pending {
		out = append(out, PendingRequest{Request: e.req, Decision: e.dec})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Decision.CreatedAt.Before(out[j].Decision.CreatedAt)
	})
	return out
}

// Len reports how many requests are currently held.
func (wb *Workbench) Len() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.pending)
}

// Sweep expires overdue entries, flushes new pending entries to the mirror
// directory, and applies resolutions another process wrote there. It
// returns every terminal decision it produced, for auditing. All disk work
// happens outside the lock so sweeping never stalls an evaluation.
func (wb *Workbench) Sweep() []model.Decision {
	now := time.Now().UTC()

	wb.mu.Lock()
	wb.pruneLocked(now)
	out := wb.expired
	wb.expired = nil
	stale := wb.stale
	wb.stale = nil

	var toMirror []PendingRequest
	if wb.dir != "" {
		for _, e := range wb.pending {
			if !e.mirrored {
				e.mirrored = true
				toMirror = append(toMirror, PendingRequest{Request: e.req, Decision: e.dec})
			}
		}
	}
	wb.mu.Unlock()

	if wb.dir == "" {
		return out
	}

	for _, id := range stale {
		wb.removeMirror(id)
	}
	for _, pr := range toMirror {
		wb.writeMirror(pr)
	}
	return append(out, wb.syncMirror(now)...)
}

// pruneLocked turns overdue entries into expiry rejections. Callers hold
// the lock.
func (wb *Workbench) pruneLocked(now time.Time) {
	for id, e := range wb.pending {
		if e.dec.ExpiresAt.IsZero() || now.Before(e.dec.ExpiresAt) {
			continue
		}
		d := e.dec
		d.Status = model.StatusRejected
		d.Code = model.RejectApprovalExpired
		d.Reason = "approval window expired"
		wb.expired = append(wb.expired, d)
		if e.mirrored {
			wb.stale = append(wb.stale, id)
		}
		delete(wb.pending, id)
	}
}

// resolveLocked removes a pending entry and returns its terminal decision.
// Callers hold the lock.
func (wb *Workbench) resolveLocked(id string, status model.ApprovalStatus, code model.RejectCode, actor, reason string) (model.Decision, bool) {
	e, ok := wb.pending[id]
	if !ok {
		return model.Decision{}, false
	}
	delete(wb.pending, id)

	d := e.dec
	d.Status = status
	d.Code = code
	d.ResolvedBy = actor
	d.Reason = reason
	if e.mirrored {
		wb.stale = append(wb.stale, id)
	}
	return d, true
}

// syncMirror reads every mirror file and reconciles it with the pending
// map: resolutions written by another process are applied and their files
// consumed; pending files for requests this process does not know (an
// earlier run's survivors) are restored or, when overdue, finalized.
func (wb *Workbench) syncMirror(now time.Time) []model.Decision {
	entries, err := os.ReadDir(wb.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			wb.logger.Warn("read approval mirror", zap.Error(err))
		}
		return nil
	}

	var out []model.Decision
	for _, f := range entries {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(wb.dir, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var pr PendingRequest
		if err := json.Unmarshal(data, &pr); err != nil {
			wb.logger.Warn("malformed approval mirror file", zap.String("file", f.Name()), zap.Error(err))
			continue
		}
		id := pr.Decision.RequestID

		switch pr.Decision.Status {
		case model.StatusApproved, model.StatusRejected:
			wb.mu.Lock()
			code := pr.Decision.Code
			if pr.Decision.Status == model.StatusRejected && code == "" {
				code = model.RejectDenied
			}
			reason := pr.Decision.Reason
			if reason == "" {
				reason = "resolved via approval file"
			}
			d, ok := wb.resolveLocked(id, pr.Decision.Status, code, pr.Decision.ResolvedBy, reason)
			wb.mu.Unlock()
			if ok {
				out = append(out, d)
			}
			os.Remove(path)

		case model.StatusPending:
			if !pr.Decision.ExpiresAt.IsZero() && !now.Before(pr.Decision.ExpiresAt) {
				wb.mu.Lock()
				_, held := wb.pending[id]
				wb.mu.Unlock()
				if !held {
					d := pr.Decision
					d.Status = model.StatusRejected
					d.Code = model.RejectApprovalExpired
					d.Reason = "approval window expired"
					out = append(out, d)
					os.Remove(path)
				}
				continue
			}
			wb.mu.Lock()
			if _, held := wb.pending[id]; !held {
				wb.pending[id] = &entry{req: pr.Request, dec: pr.Decision, mirrored: true}
			}
			wb.mu.Unlock()
		}
	}
	return out
}

func (wb *Workbench) writeMirror(pr PendingRequest) {
	id := pr.Decision.RequestID
	if !validRequestID.MatchString(id) {
		wb.logger.Warn("skipping mirror for unsafe request id", zap.String("id", id))
		return
	}
	data, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		wb.logger.Warn("marshal approval mirror", zap.Error(err))
		return
	}
	path := filepath.Join(wb.dir, id+".json")
	if err := rules.WriteFileAtomic(path, data, 0o644); err != nil {
		wb.logger.Warn("write approval mirror", zap.String("path", path), zap.Error(err))
	}
}

func (wb *Workbench) removeMirror(id string) {
	if !validRequestID.MatchString(id) {
		return
	}
	path := filepath.Join(wb.dir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		wb.logger.Warn("remove approval mirror", zap.String("path", path), zap.Error(err))
	}
}
