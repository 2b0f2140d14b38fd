package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format. Unknown
// formats fall back to the generic JSON encoding of the event itself.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return json.Marshal(slackPayload(event))
	case "pagerduty":
		return json.Marshal(pagerDutyPayload(event))
	}
	return json.Marshal(event)
}

// slackPayload shapes the event as Block Kit: a header with the decision
// and a section of engine/subject/rule/reason fields.
func slackPayload(event Event) map[string]any {
	rule := event.RuleID
	if rule == "" {
		rule = "-"
	}
	header := map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": "trustgate: " + event.Decision,
		},
	}
	section := map[string]any{
		"type": "section",
		"fields": []any{
			mrkdwn("Engine", event.Engine),
			mrkdwn("Subject", event.Subject),
			mrkdwn("Rule", rule),
			mrkdwn("Reason", event.Reason),
		},
	}
	return map[string]any{"blocks": []any{header, section}}
}

func mrkdwn(label, value string) map[string]any {
	return map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf("*%s:* %s", label, value),
	}
}

func pagerDutyPayload(event Event) map[string]any {
	return map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("trustgate %s: %s", event.Decision, event.Subject),
			"severity": severityFor(event.Decision),
			"source":   "trustgate",
			"custom_details": map[string]any{
				"engine":     event.Engine,
				"subject":    event.Subject,
				"reason":     event.Reason,
				"rule_id":    event.RuleID,
				"request_id": event.RequestID,
			},
		},
	}
}

func severityFor(decision string) string {
	switch decision {
	case "block", "rejected":
		return "error"
	case "rate_limit", "pending":
		return "warning"
	}
	return "info"
}
