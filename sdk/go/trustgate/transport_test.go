package trustgate

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ppiankov/trustgate/internal/rules"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func cannedResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestTransportAllowsAndSends(t *testing.T) {
	c, _ := newTestClient(t)

	var sent string
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		sent = req.URL.String()
		return cannedResponse("article"), nil
	})

	client := &http.Client{Transport: c.Transport(base)}
	resp, err := client.Get("https://en.wikipedia.org/wiki/Go")
	if err != nil {
		t.Fatalf("expected request to pass, got %v", err)
	}
	defer resp.Body.Close()

	if sent != "https://en.wikipedia.org/wiki/Go" {
		t.Errorf("unexpected URL on the wire: %q", sent)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "article" {
		t.Errorf("expected body passthrough, got %q", body)
	}
}

func TestTransportBlocksWithoutSending(t *testing.T) {
	c, _ := newTestClient(t)

	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("blocked request reached the base transport")
		return nil, nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://blocked.invalid/payload", nil)
	_, err := c.Transport(base).RoundTrip(req)

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %T: %v", err, err)
	}
	if blocked.Verdict != "block" {
		t.Errorf("expected verdict block, got %q", blocked.Verdict)
	}
	if blocked.URL != "https://blocked.invalid/payload" {
		t.Errorf("unexpected URL in error: %q", blocked.URL)
	}
}

func TestTransportRewritesRedirectRule(t *testing.T) {
	c, _ := newTestClient(t)

	var sent string
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		sent = req.URL.String()
		return cannedResponse("ok"), nil
	})

	req, _ := http.NewRequest(http.MethodGet, "http://github.com/owner/repo", nil)
	resp, err := c.Transport(base).RoundTrip(req)
	if err != nil {
		t.Fatalf("expected redirect rule to pass the request, got %v", err)
	}
	defer resp.Body.Close()

	if sent != "https://github.com" {
		t.Errorf("expected plain-http github to be rewritten, got %q", sent)
	}
}

func TestTransportCapsResponseBody(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.g.AddRule(rules.NetworkRule{
		ID:           "capped",
		Domain:       "capped.example.org",
		Action:       "allow",
		MaxSizeBytes: 16,
	}); err != nil {
		t.Fatal(err)
	}

	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return cannedResponse("0123456789abcdefEXTRA"), nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://capped.example.org/blob", nil)
	resp, err := c.Transport(base).RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if !errors.Is(readErr, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", readErr)
	}
	if string(body) != "0123456789abcdef" {
		t.Errorf("expected exactly the cap in bytes, got %q", body)
	}
}

func TestTransportRateLimits(t *testing.T) {
	c, _ := newTestClient(t)

	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return cannedResponse("{}"), nil
	})
	rt := c.Transport(base)

	// The built-in pypi rule admits 60 requests a minute.
	for i := 0; i < 60; i++ {
		req, _ := http.NewRequest(http.MethodGet, "https://pypi.org/simple/requests/", nil)
		resp, err := rt.RoundTrip(req)
		if err != nil {
			t.Fatalf("request %d unexpectedly blocked: %v", i+1, err)
		}
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, "https://pypi.org/simple/requests/", nil)
	_, err := rt.RoundTrip(req)
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected the 61st request to be blocked, got %v", err)
	}
	if blocked.Verdict != "rate_limit" {
		t.Errorf("expected verdict rate_limit, got %q", blocked.Verdict)
	}
}
