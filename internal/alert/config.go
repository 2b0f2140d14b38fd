package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // decisions to forward: ["block", "rate_limit", "pending"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string `json:"timestamp"`
	Engine    string `json:"engine"`
	Subject   string `json:"subject"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	RuleID    string `json:"rule_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
