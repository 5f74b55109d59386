package diskpool

import "go.uber.org/zap"

// Option configures a Manager at construction time. The spec's
// configuration surface (§6) is just page_size and frame_capacity;
// these functional options (the idiom the pack's larger services use
// for optional ambient wiring) cover everything beyond those two
// required knobs without growing Open's positional argument list.
type Option func(*Manager)

// WithLogger injects a structured logger. The default is a no-op
// logger, so the core never forces logging output on a caller that
// didn't ask for it.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics injects a Prometheus instrument bundle. The default is
// nil, which every call site treats as "metrics disabled."
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}
