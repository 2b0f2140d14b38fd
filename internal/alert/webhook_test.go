package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// countServer returns a test server that counts requests and answers with
// the given status.
func countServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func waitForHits(hits *atomic.Int32, want int32) {
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatchRouting(t *testing.T) {
	tests := []struct {
		name     string
		events   []string
		decision string
		want     int32
	}{
		{"matching decision fires", []string{"block"}, "block", 1},
		{"non-matching decision skipped", []string{"block"}, "allow", 0},
		{"decision among several", []string{"block", "pending"}, "pending", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := countServer(t, http.StatusOK)
			d := NewDispatcher([]Config{{URL: srv.URL, Format: "generic", Events: tt.events}})
			d.Dispatch(Event{Engine: "net", Subject: "https://api.example.com/", Decision: tt.decision})
			waitForHits(hits, tt.want)
			time.Sleep(50 * time.Millisecond)
			if got := hits.Load(); got != tt.want {
				t.Errorf("got %d calls, want %d", got, tt.want)
			}
		})
	}
}

func TestDispatchFansOutToAllMatches(t *testing.T) {
	srv1, hits1 := countServer(t, http.StatusOK)
	srv2, hits2 := countServer(t, http.StatusOK)

	d := NewDispatcher([]Config{
		{URL: srv1.URL, Format: "generic", Events: []string{"block"}},
		{URL: srv2.URL, Format: "slack", Events: []string{"block", "pending"}},
	})
	d.Dispatch(Event{Engine: "tool", Subject: "execute_command", Decision: "block"})

	waitForHits(hits1, 1)
	waitForHits(hits2, 1)
	if hits1.Load() != 1 || hits2.Load() != 1 {
		t.Errorf("got %d/%d calls, want 1/1", hits1.Load(), hits2.Load())
	}
}

func TestDispatchNilReceiver(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(Event{Decision: "block"}) // must not panic
}

func TestNewDispatcherEmpty(t *testing.T) {
	if NewDispatcher(nil) != nil {
		t.Error("nil configs should yield nil dispatcher")
	}
	if NewDispatcher([]Config{}) != nil {
		t.Error("empty configs should yield nil dispatcher")
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Send(Config{URL: srv.URL, Format: "generic"}, Event{Decision: "block"}); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("got %d attempts, want 3", got)
	}
}

func TestSendGivesUpOnClientError(t *testing.T) {
	srv, hits := countServer(t, http.StatusBadRequest)

	err := Send(Config{URL: srv.URL, Format: "generic"}, Event{Decision: "block"})
	if err == nil {
		t.Error("expected error on 400")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("got %d attempts, want 1 (no retry on 4xx)", got)
	}
}

func TestSendForwardsHeaders(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{
		URL:     srv.URL,
		Format:  "generic",
		Headers: map[string]string{"Authorization": "Bearer webhook-token"},
	}
	if err := Send(cfg, Event{Decision: "block"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth.Load() != "Bearer webhook-token" {
		t.Errorf("custom header not forwarded, got %v", gotAuth.Load())
	}
}

func TestGenericPayloadRoundTrips(t *testing.T) {
	event := Event{
		Timestamp: "2025-01-15T14:00:00.000Z",
		Engine:    "net",
		Subject:   "http://169.254.169.254/latest/meta-data",
		Decision:  "block",
		Reason:    "suspicious host: link-local metadata service",
		RuleID:    "rule-007",
	}

	for _, format := range []string{"generic", "", "unknown"} {
		data, err := FormatPayload(format, event)
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		var parsed Event
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("format %q produced invalid JSON: %v", format, err)
		}
		if parsed != event {
			t.Errorf("format %q: got %+v, want %+v", format, parsed, event)
		}
	}
}

func TestSlackPayloadShape(t *testing.T) {
	data, err := FormatPayload("slack", Event{
		Engine:   "tool",
		Subject:  "execute_command",
		Decision: "block",
		Reason:   "dangerous pattern in parameters",
	})
	if err != nil {
		t.Fatal(err)
	}

	var parsed struct {
		Blocks []struct {
			Type string `json:"type"`
			Text struct {
				Text string `json:"text"`
			} `json:"text"`
			Fields []struct {
				Text string `json:"text"`
			} `json:"fields"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack payload is not valid JSON: %v", err)
	}
	if len(parsed.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(parsed.Blocks))
	}
	if parsed.Blocks[0].Type != "header" || parsed.Blocks[0].Text.Text != "trustgate: block" {
		t.Errorf("unexpected header block: %+v", parsed.Blocks[0])
	}
	if parsed.Blocks[1].Type != "section" || len(parsed.Blocks[1].Fields) != 4 {
		t.Errorf("unexpected section block: %+v", parsed.Blocks[1])
	}
}

func TestPagerDutyPayloadShape(t *testing.T) {
	data, err := FormatPayload("pagerduty", Event{
		Engine:   "net",
		Subject:  "http://169.254.169.254/latest/meta-data",
		Decision: "block",
		Reason:   "suspicious host",
	})
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("pagerduty payload is not valid JSON: %v", err)
	}
	if parsed["event_action"] != "trigger" {
		t.Errorf("got event_action %v, want trigger", parsed["event_action"])
	}
	payload, ok := parsed["payload"].(map[string]any)
	if !ok {
		t.Fatal("missing payload object")
	}
	if payload["severity"] != "error" {
		t.Errorf("got severity %v for block, want error", payload["severity"])
	}
	if payload["source"] != "trustgate" {
		t.Errorf("got source %v, want trustgate", payload["source"])
	}
}

func TestSeverityFor(t *testing.T) {
	want := map[string]string{
		"block":      "error",
		"rejected":   "error",
		"rate_limit": "warning",
		"pending":    "warning",
		"allow":      "info",
		"approved":   "info",
	}
	for decision, severity := range want {
		if got := severityFor(decision); got != severity {
			t.Errorf("severityFor(%q) = %q, want %q", decision, got, severity)
		}
	}
}
