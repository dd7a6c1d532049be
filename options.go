package memq

import (
	"time"

	"github.com/pkg/errors"
)

const (
	defaultMaxRetries         = 3
	defaultBaseRetryDelay     = time.Second
	defaultDeadLetterCapacity = 100
)

// Options holds the broker configuration. Use the functional Option helpers
// instead of constructing it directly.
type Options struct {
	// MaxRetries is the number of redeliveries attempted after the first
	// failed delivery. A message is delivered at most MaxRetries+1 times.
	MaxRetries int
	// BaseRetryDelay is the delay of the first retry when no custom
	// RetryPolicy is provided.
	BaseRetryDelay time.Duration
	// RetryPolicy computes the redelivery delay. Defaults to
	// ExponentialBackoff{Base: BaseRetryDelay}.
	RetryPolicy RetryPolicy
	// DeadLetterCapacity bounds the dead-letter sink; the oldest entry is
	// evicted when the bound is exceeded.
	DeadLetterCapacity int
	// DeadLetterHook is invoked after a message is moved to the dead-letter
	// sink.
	DeadLetterHook DeadLetterHook
	// Logger logs important events
	Logger Logger
	// Now is the time source used for message and dead-letter timestamps.
	Now func() time.Time
}

// Option provides a way to interact with the broker options
type Option func(*Options)

// WithMaxRetries sets the redelivery budget per message.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithBaseRetryDelay sets the delay of the first retry.
func WithBaseRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.BaseRetryDelay = d
	}
}

// WithRetryPolicy sets a custom back-off policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Options) {
		o.RetryPolicy = p
	}
}

// WithDeadLetterCapacity bounds the dead-letter sink.
func WithDeadLetterCapacity(n int) Option {
	return func(o *Options) {
		o.DeadLetterCapacity = n
	}
}

// WithDeadLetterHook sets the hook invoked when a message is dead-lettered.
func WithDeadLetterHook(h DeadLetterHook) Option {
	return func(o *Options) {
		o.DeadLetterHook = h
	}
}

// WithLogger sets the logger
func WithLogger(log Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

// WithNowFunc sets the time source, which is useful for testing.
func WithNowFunc(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

func newOptions(opts ...Option) (Options, error) {
	o := Options{
		MaxRetries:         defaultMaxRetries,
		BaseRetryDelay:     defaultBaseRetryDelay,
		DeadLetterCapacity: defaultDeadLetterCapacity,
		Now:                time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.MaxRetries < 0 {
		return o, errors.Errorf("memq: max retries must not be negative, got %d", o.MaxRetries)
	}
	if o.BaseRetryDelay <= 0 {
		return o, errors.Errorf("memq: base retry delay must be positive, got %s", o.BaseRetryDelay)
	}
	if o.DeadLetterCapacity <= 0 {
		return o, errors.Errorf("memq: dead-letter capacity must be positive, got %d", o.DeadLetterCapacity)
	}
	if o.RetryPolicy == nil {
		o.RetryPolicy = ExponentialBackoff{Base: o.BaseRetryDelay}
	}

	return o, nil
}
