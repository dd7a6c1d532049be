package idempotency

import (
	"context"
	"strings"

	"github.com/ahmedboeni/memq"
)

// Middleware returns a memq.Middleware that enforces idempotent message
// processing backed by the given ledger.
//
// Key resolution:
//   - primary: memq.Message.ID
//   - fallback: memq.Message.Header["Idempotency-Key"] (see WithHeaderName)
//
// The ledger scopes the message key by the event channel, so the same
// message id is processed at most once per channel. On replay the wrapped
// handler is skipped and the middleware returns nil, which acknowledges the
// message. Conflicts (ErrInProgress, ErrRetriesExhausted) are returned as
// errors so the broker's retry machinery decides what happens next.
func Middleware(ledger *Ledger, opts ...Option) memq.Middleware {
	cfg := NewConfig(opts...)
	if ledger == nil {
		panic("idempotency: nil ledger")
	}

	return func(next memq.Handler) memq.Handler {
		return func(event memq.Event) error {
			msg := event.Message()

			key, hasKey, err := resolveKey(event, cfg)
			if err != nil {
				return err
			}
			if !hasKey {
				return next(event)
			}

			execution, err := ledger.Execute(
				msg.Context(),
				cfg.KeyPrefix+event.Channel(),
				key,
				func(context.Context) ([]byte, error) {
					return nil, next(event)
				},
			)
			if err != nil {
				return err
			}
			if execution.Replayed && cfg.OnReplay != nil {
				cfg.OnReplay(event, execution.Result)
			}

			return nil
		}
	}
}

func resolveKey(event memq.Event, cfg Config) (key string, hasKey bool, err error) {
	msg := event.Message()

	rawKey := strings.TrimSpace(msg.ID)
	if rawKey == "" && msg.Header != nil && cfg.HeaderName != "" {
		rawKey = strings.TrimSpace(msg.Header.Get(cfg.HeaderName))
	}

	if rawKey == "" {
		if cfg.RequireKey {
			return "", false, ErrMissingKey
		}
		return "", false, nil
	}

	if err := cfg.KeyValidator(rawKey); err != nil {
		return "", false, err
	}

	return rawKey, true, nil
}
