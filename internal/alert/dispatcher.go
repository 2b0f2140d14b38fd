package alert

import "slices"

// Dispatcher fans out alert events to webhook destinations whose Events
// list names the event's decision.
type Dispatcher struct {
	targets []Config
}

// NewDispatcher returns nil when no webhooks are configured; Dispatch on a
// nil receiver is a no-op, so callers need no guard of their own.
func NewDispatcher(targets []Config) *Dispatcher {
	if len(targets) == 0 {
		return nil
	}
	return &Dispatcher{targets: targets}
}

// Dispatch fires a goroutine per matching webhook and returns immediately.
// Delivery failures are swallowed; alerting never blocks a decision.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.targets {
		if slices.Contains(cfg.Events, event.Decision) {
			go Send(cfg, event)
		}
	}
}
