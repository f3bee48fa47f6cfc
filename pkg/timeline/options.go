package timeline

import "log/slog"

// Option configures a Timeline.
type Option func(*Timeline)

// WithEqual sets the output equality used for early cutoff. The default is
// reflect.DeepEqual.
func WithEqual(equal func(a, b any) bool) Option {
	return func(t *Timeline) {
		if equal != nil {
			t.equal = equal
		}
	}
}

// WithLogger sets the logger for debug tracing of queries.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timeline) {
		if logger != nil {
			t.logger = logger
		}
	}
}
