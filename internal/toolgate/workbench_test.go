package toolgate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/trustgate/internal/model"
)

func pendingDecision(id string, ttl time.Duration) (model.ExecutionRequest, model.Decision) {
	req := model.ExecutionRequest{ID: id, Tool: "file_delete", Time: time.Now().UTC()}
	dec := model.Decision{
		ID:        "dec-" + id,
		RequestID: id,
		Tool:      req.Tool,
		Status:    model.StatusPending,
		Reason:    "requires manual approval",
		Level:     model.LevelHigh,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return req, dec
}

func TestWorkbenchResolveExactlyOnce(t *testing.T) {
	wb := NewWorkbench(time.Minute, "", nil)
	req, dec := pendingDecision("req-1", time.Minute)
	wb.Add(req, dec)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if _, ok := wb.Approve("req-1", "racer"); ok {
					successes.Add(1)
				}
			} else {
				if _, ok := wb.Reject("req-1", "racer", "no"); ok {
					successes.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Errorf("expected exactly one successful resolution, got %d", got)
	}
	if wb.Len() != 0 {
		t.Errorf("expected empty workbench, got %d entries", wb.Len())
	}
}

func TestWorkbenchUnknownID(t *testing.T) {
	wb := NewWorkbench(time.Minute, "", nil)
	if _, ok := wb.Approve("ghost", "x"); ok {
		t.Error("expected approval of an unknown id to fail")
	}
	if _, ok := wb.Reject("ghost", "x", "y"); ok {
		t.Error("expected rejection of an unknown id to fail")
	}
}

func TestWorkbenchExpiry(t *testing.T) {
	wb := NewWorkbench(time.Millisecond, "", nil)
	req, dec := pendingDecision("req-1", time.Millisecond)
	wb.Add(req, dec)

	time.Sleep(10 * time.Millisecond)

	if got := wb.Pending(); len(got) != 0 {
		t.Errorf("expected pruning to clear the pending list, got %d", len(got))
	}

	expired := wb.Sweep()
	if len(expired) != 1 {
		t.Fatalf("expected one expiry decision, got %d", len(expired))
	}
	d := expired[0]
	if d.Status != model.StatusRejected || d.Code != model.RejectApprovalExpired {
		t.Errorf("unexpected expiry decision: %+v", d)
	}
	if again := wb.Sweep(); len(again) != 0 {
		t.Errorf("expected no repeat expiry reports, got %d", len(again))
	}
}

func TestWorkbenchMirrorLifecycle(t *testing.T) {
	dir := t.TempDir()
	wb := NewWorkbench(time.Minute, dir, nil)
	req, dec := pendingDecision("req-42", time.Minute)
	wb.Add(req, dec)

	// Add never writes; the sweep does.
	path := filepath.Join(dir, "req-42.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected no mirror file before the first sweep")
	}
	if out := wb.Sweep(); len(out) != 0 {
		t.Fatalf("expected no decisions from the flush sweep, got %d", len(out))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected mirror file after sweep: %v", err)
	}
	var pr PendingRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		t.Fatalf("mirror file does not parse: %v", err)
	}
	if pr.Decision.Status != model.StatusPending || pr.Request.Tool != "file_delete" {
		t.Errorf("unexpected mirror content: %+v", pr)
	}

	// another process rules on the file
	pr.Decision.Status = model.StatusApproved
	pr.Decision.ResolvedBy = "cli"
	flipped, _ := json.Marshal(pr)
	if err := os.WriteFile(path, flipped, 0o644); err != nil {
		t.Fatal(err)
	}

	out := wb.Sweep()
	if len(out) != 1 {
		t.Fatalf("expected the external approval to surface, got %d decisions", len(out))
	}
	if out[0].Status != model.StatusApproved || out[0].ResolvedBy != "cli" {
		t.Errorf("unexpected resolution: %+v", out[0])
	}
	if wb.Len() != 0 {
		t.Error("expected the entry to leave the workbench")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected the mirror file to be consumed")
	}
}

func TestWorkbenchMirrorRestore(t *testing.T) {
	dir := t.TempDir()

	req, dec := pendingDecision("req-7", time.Minute)
	data, _ := json.MarshalIndent(PendingRequest{Request: req, Decision: dec}, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, "req-7.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	// a fresh workbench picks up the survivor from an earlier run
	wb := NewWorkbench(time.Minute, dir, nil)
	if out := wb.Sweep(); len(out) != 0 {
		t.Fatalf("expected no decisions while restoring, got %d", len(out))
	}
	pending := wb.Pending()
	if len(pending) != 1 || pending[0].Decision.RequestID != "req-7" {
		t.Fatalf("expected the mirrored request to be restored, got %+v", pending)
	}

	if _, ok := wb.Approve("req-7", "alice"); !ok {
		t.Error("expected the restored request to be approvable")
	}
}

func TestWorkbenchMirrorExpiredFile(t *testing.T) {
	dir := t.TempDir()

	req, dec := pendingDecision("req-9", -time.Minute) // already past deadline
	data, _ := json.Marshal(PendingRequest{Request: req, Decision: dec})
	path := filepath.Join(dir, "req-9.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	wb := NewWorkbench(time.Minute, dir, nil)
	out := wb.Sweep()
	if len(out) != 1 || out[0].Code != model.RejectApprovalExpired {
		t.Fatalf("expected the stale file to finalize as expired, got %+v", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected the stale file to be removed")
	}
	if wb.Len() != 0 {
		t.Error("expected nothing restored")
	}
}

func TestWorkbenchRejectDefaultReason(t *testing.T) {
	wb := NewWorkbench(time.Minute, "", nil)
	req, dec := pendingDecision("req-1", time.Minute)
	wb.Add(req, dec)

	d, ok := wb.Reject("req-1", "op", "")
	if !ok {
		t.Fatal("expected rejection to succeed")
	}
	if d.Reason != "manually rejected" {
		t.Errorf("expected the default reason, got %q", d.Reason)
	}
}
