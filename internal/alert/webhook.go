package alert

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

const sendAttempts = 3

var client = &http.Client{Timeout: 5 * time.Second}

// Send posts an alert event to a webhook endpoint. Server errors (5xx) and
// transport failures are retried with linear backoff; client errors are not.
func Send(cfg Config, event Event) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for try := 1; try <= sendAttempts; try++ {
		status, err := post(cfg, body)
		switch {
		case err != nil:
			lastErr = err
		case status < 300:
			return nil
		case status < 500:
			return fmt.Errorf("webhook rejected: HTTP %d", status)
		default:
			lastErr = fmt.Errorf("webhook server error: HTTP %d", status)
		}
		if try < sendAttempts {
			time.Sleep(time.Duration(try) * time.Second)
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", sendAttempts, lastErr)
}

func post(cfg Config, body []byte) (int, error) {
	req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
