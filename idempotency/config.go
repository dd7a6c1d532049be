package idempotency

import (
	"fmt"
	"strings"

	"github.com/ahmedboeni/memq"
)

// DefaultHeaderName is the header key used as a fallback idempotency key
// source when memq.Message.ID is empty.
const DefaultHeaderName = memq.HdrIdempotencyKey

const defaultKeyLength = 255

// Config defines idempotency middleware behavior.
//
// Provide the backing ledger via Middleware(ledger, ...); use functional
// Options via Middleware(...) instead of constructing Config directly.
type Config struct {
	// HeaderName is used as a fallback when memq.Message.ID is empty.
	HeaderName string
	// KeyPrefix is prepended to the channel when building the ledger actor
	// (useful when several brokers share one ledger).
	KeyPrefix string
	// RequireKey makes missing keys an error (ErrMissingKey). When false and
	// a key is missing, the middleware becomes a no-op and passes the event
	// through.
	RequireKey bool
	// KeyValidator validates the resolved key (Message.ID or HeaderName).
	// Returning an error prevents processing and is propagated to the caller.
	KeyValidator func(string) error
	// OnReplay is called when a completed record is replayed (i.e. the
	// handler is skipped). It receives the cached result.
	OnReplay func(memq.Event, []byte)
}

// Option configures the middleware.
type Option func(*Config)

// WithHeaderName sets the header key used as a fallback idempotency key source when Message.ID is empty.
func WithHeaderName(name string) Option {
	return func(c *Config) {
		c.HeaderName = name
	}
}

// WithKeyPrefix prepends prefix to the ledger actor (useful for shared ledgers).
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithRequireKey toggles whether a missing key is treated as an error.
func WithRequireKey(required bool) Option {
	return func(c *Config) {
		c.RequireKey = required
	}
}

// WithKeyValidator sets a custom key validator.
func WithKeyValidator(validator func(string) error) Option {
	return func(c *Config) {
		c.KeyValidator = validator
	}
}

// WithOnReplay sets a callback invoked when an event is treated as a replay.
func WithOnReplay(onReplay func(memq.Event, []byte)) Option {
	return func(c *Config) {
		c.OnReplay = onReplay
	}
}

// NewConfig applies options and fills defaults.
//
// Middleware calls NewConfig internally; it is exposed for tests and
// advanced configuration.
func NewConfig(opts ...Option) Config {
	c := Config{
		HeaderName: DefaultHeaderName,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.KeyValidator == nil {
		c.KeyValidator = defaultKeyValidator
	}
	c.HeaderName = strings.TrimSpace(c.HeaderName)

	return c
}

func defaultKeyValidator(k string) error {
	k = strings.TrimSpace(k)
	if k == "" {
		return ErrMissingKey
	}
	if len(k) > defaultKeyLength {
		return fmt.Errorf("invalid idempotency key: too long (max %d chars)", defaultKeyLength)
	}

	return nil
}
