package audit

// Engine names recorded in audit entries.
const (
	EngineTool     = "tool"
	EngineNet      = "net"
	EngineRedact   = "redact"
	EngineApproval = "approval"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp string `json:"ts"`
	Engine    string `json:"engine"`
	Subject   string `json:"subject"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	RuleID    string `json:"rule_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	PrevHash  string `json:"prev_hash"`
}
