package idempotency

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ahmedboeni/memq"
)

const (
	defaultTTL           = time.Hour
	defaultMaxRetries    = 3
	defaultSweepInterval = time.Minute
)

// LedgerOptions holds the ledger configuration. Use the functional
// LedgerOption helpers instead of constructing it directly.
type LedgerOptions struct {
	// TTL bounds how long a record is honored. It should exceed the
	// expected processing latency, otherwise a record can expire mid-flight
	// and the action execute twice.
	TTL time.Duration
	// MaxRetries is the number of failed executions tolerated per key
	// before further attempts are refused.
	MaxRetries int
	// SweepInterval is how often expired records are removed. It is
	// independent of TTL.
	SweepInterval time.Duration
	// Logger logs important events
	Logger memq.Logger
	// Now is the injectable time source.
	Now func() time.Time
}

// LedgerOption configures the ledger.
type LedgerOption func(*LedgerOptions)

// WithTTL sets the record time-to-live.
func WithTTL(ttl time.Duration) LedgerOption {
	return func(o *LedgerOptions) {
		o.TTL = ttl
	}
}

// WithMaxRetries sets the failed-execution budget per key.
func WithMaxRetries(n int) LedgerOption {
	return func(o *LedgerOptions) {
		o.MaxRetries = n
	}
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) LedgerOption {
	return func(o *LedgerOptions) {
		o.SweepInterval = d
	}
}

// WithLogger sets the logger
func WithLogger(log memq.Logger) LedgerOption {
	return func(o *LedgerOptions) {
		o.Logger = log
	}
}

// WithNowFunc sets the time source, which is useful for testing.
func WithNowFunc(now func() time.Time) LedgerOption {
	return func(o *LedgerOptions) {
		o.Now = now
	}
}

func newLedgerOptions(opts ...LedgerOption) (LedgerOptions, error) {
	o := LedgerOptions{
		TTL:           defaultTTL,
		MaxRetries:    defaultMaxRetries,
		SweepInterval: defaultSweepInterval,
		Now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.TTL <= 0 {
		return o, errors.Errorf("idempotency: ttl must be positive, got %s", o.TTL)
	}
	if o.MaxRetries < 0 {
		return o, errors.Errorf("idempotency: max retries must not be negative, got %d", o.MaxRetries)
	}
	if o.SweepInterval <= 0 {
		return o, errors.Errorf("idempotency: sweep interval must be positive, got %s", o.SweepInterval)
	}

	return o, nil
}
