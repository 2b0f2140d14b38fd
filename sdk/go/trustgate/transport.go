package trustgate

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrResponseTooLarge is returned by a capped response body once reads
// pass the rule's max_size_bytes.
var ErrResponseTooLarge = errors.New("trustgate: response body exceeds rule size cap")

// Transport returns an http.RoundTripper that checks every outbound
// request against the network gate before handing it to base. Blocked
// requests return a *BlockedError without any bytes leaving the process.
// Redirect rules rewrite the request URL; response bodies are capped at
// the matched rule's max_size_bytes.
//
// Redirects followed by http.Client re-enter RoundTrip, so every hop is
// checked — a permitted host cannot bounce the agent to a blocked one.
// A nil base uses http.DefaultTransport.
func (c *Client) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &guardedTransport{client: c, base: base}
}

type guardedTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	d := t.client.g.CheckURL(req.URL.String())
	if !d.Allowed() {
		return nil, &BlockedError{
			URL:     req.URL.String(),
			Verdict: string(d.Verdict),
			RuleID:  d.RuleID,
			Reason:  d.Reason,
		}
	}

	if d.RedirectURL != "" {
		target, err := url.Parse(d.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("trustgate: rule %s has invalid redirect url: %w", d.RuleID, err)
		}
		req = req.Clone(req.Context())
		req.URL = target
		req.Host = ""
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if d.MaxSize > 0 && resp.Body != nil {
		resp.Body = &cappedBody{rc: resp.Body, remaining: d.MaxSize}
	}
	return resp, nil
}

// cappedBody fails loudly instead of silently truncating: the caller gets
// at most the cap in bytes, then ErrResponseTooLarge.
type cappedBody struct {
	rc        io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, ErrResponseTooLarge
	}
	n, err := b.rc.Read(p)
	if int64(n) > b.remaining {
		n = int(b.remaining)
		b.exceeded = true
		return n, ErrResponseTooLarge
	}
	b.remaining -= int64(n)
	return n, err
}

func (b *cappedBody) Close() error {
	return b.rc.Close()
}
