package trustgate

import (
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/guard"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	configPath string
	guard      *guard.Guard
	logger     *zap.Logger
	actor      string
	session    string
}

// WithConfig sets the gate config path (default ~/.trustgate/config.yaml).
func WithConfig(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithGuard shares an already assembled guard instead of building one.
// The client will not close a shared guard.
func WithGuard(g *guard.Guard) Option {
	return func(c *clientConfig) { c.guard = g }
}

// WithLogger sets the logger for the engines. Default is no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithActor sets the identity stamped on every request this client checks.
func WithActor(actor string) Option {
	return func(c *clientConfig) { c.actor = actor }
}

// WithSession tags requests with a session identifier for the audit trail.
func WithSession(session string) Option {
	return func(c *clientConfig) { c.session = session }
}
