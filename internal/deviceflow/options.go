// Package deviceflow implements the client side of the OAuth 2.0 Device
// Authorization Grant (RFC 8628)
package deviceflow

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSlowDownIncrement is added to the interval on slow_down per RFC 8628 section 3.5
	DefaultSlowDownIncrement = 5 * time.Second

	// DefaultMaxTransientFailures bounds consecutive transport failures
	DefaultMaxTransientFailures = 5
)

// Option configures the device flow components
type Option func(*options)

type options struct {
	clock                Clock
	logger               *zap.Logger
	slowDownIncrement    time.Duration
	maxTransientFailures int
	observers            []Observer
	pollObservers        []PollObserver
}

func newOptions(opts []Option) options {
	o := options{
		clock:                realClock{},
		logger:               zap.NewNop(),
		slowDownIncrement:    DefaultSlowDownIncrement,
		maxTransientFailures: DefaultMaxTransientFailures,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSlowDownIncrement sets how much the interval grows on slow_down
func WithSlowDownIncrement(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.slowDownIncrement = d
		}
	}
}

// WithMaxTransientFailures bounds consecutive transport failures, polls that
// got no OAuth error code back. Zero polls until a terminal answer or the
// deadline.
func WithMaxTransientFailures(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxTransientFailures = n
		}
	}
}

// WithObserver registers a state transition observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithPollObserver registers an observer for failed polls
func WithPollObserver(obs PollObserver) Option {
	return func(o *options) {
		if obs != nil {
			o.pollObservers = append(o.pollObservers, obs)
		}
	}
}
