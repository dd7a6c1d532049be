package idempotency_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahmedboeni/memq"
	"github.com/ahmedboeni/memq/idempotency"
)

type testEvent struct {
	channel string
	msg     *memq.Message
}

func (e *testEvent) Channel() string        { return e.channel }
func (e *testEvent) Message() *memq.Message { return e.msg }

func newTestEvent(id string) *testEvent {
	msg := memq.NewMessage()
	msg.ID = id
	msg.Body = []byte(`{"amount":10}`)
	return &testEvent{channel: "payments", msg: msg}
}

func newMiddlewareLedger(t *testing.T, opts ...idempotency.LedgerOption) *idempotency.Ledger {
	t.Helper()

	l, err := idempotency.NewLedger(append([]idempotency.LedgerOption{
		idempotency.WithTTL(time.Minute),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(l.Close)

	return l
}

func TestMiddlewareInvokesHandlerOncePerKey(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		return nil
	})

	require.NoError(t, handler(newTestEvent("msg-1")))
	require.NoError(t, handler(newTestEvent("msg-1")))
	require.Equal(t, 1, calls)
}

func TestMiddlewareScopesKeyByChannel(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		return nil
	})

	a := newTestEvent("msg-1")
	b := newTestEvent("msg-1")
	b.channel = "refunds"

	require.NoError(t, handler(a))
	require.NoError(t, handler(b))
	require.Equal(t, 2, calls)
}

func TestMiddlewareInvokesOnReplayCallback(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var replayed int
	handler := idempotency.Middleware(
		ledger,
		idempotency.WithOnReplay(func(e memq.Event, result []byte) {
			replayed++
		}),
	)(func(e memq.Event) error {
		return nil
	})

	require.NoError(t, handler(newTestEvent("msg-1")))
	require.Equal(t, 0, replayed)

	require.NoError(t, handler(newTestEvent("msg-1")))
	require.Equal(t, 1, replayed)
}

func TestMiddlewareFallsBackToHeaderKey(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		return nil
	})

	first := newTestEvent("")
	first.msg.Header.SetIdempotencyKey("key-42")
	second := newTestEvent("")
	second.msg.Header.SetIdempotencyKey("key-42")

	require.NoError(t, handler(first))
	require.NoError(t, handler(second))
	require.Equal(t, 1, calls)
}

func TestMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		return nil
	})

	require.NoError(t, handler(newTestEvent("")))
	require.NoError(t, handler(newTestEvent("")))
	require.Equal(t, 2, calls)
	require.Equal(t, 0, ledger.Stats().Total)
}

func TestMiddlewareRequireKeyRejectsMissingKey(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	handler := idempotency.Middleware(
		ledger,
		idempotency.WithRequireKey(true),
	)(func(e memq.Event) error {
		t.Error("handler must not run without a key")
		return nil
	})

	err := handler(newTestEvent(""))
	require.ErrorIs(t, err, idempotency.ErrMissingKey)
}

func TestMiddlewareKeyValidatorRejectsKey(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	handler := idempotency.Middleware(
		ledger,
		idempotency.WithKeyValidator(func(k string) error {
			if !strings.HasPrefix(k, "ord-") {
				return errors.New("key must start with ord-")
			}
			return nil
		}),
	)(func(e memq.Event) error {
		t.Error("handler must not run with an invalid key")
		return nil
	})

	err := handler(newTestEvent("msg-1"))
	require.EqualError(t, err, "key must start with ord-")
}

func TestMiddlewarePropagatesHandlerError(t *testing.T) {
	ledger := newMiddlewareLedger(t, idempotency.WithMaxRetries(1))

	cause := errors.New("handler failure")
	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		return cause
	})

	require.ErrorIs(t, handler(newTestEvent("msg-1")), cause)

	// retry budget exhausted, the handler is no longer invoked
	require.ErrorIs(t, handler(newTestEvent("msg-1")), idempotency.ErrRetriesExhausted)
	require.Equal(t, 1, calls)
}

func TestMiddlewareRetriesAfterFailureWithinBudget(t *testing.T) {
	ledger := newMiddlewareLedger(t, idempotency.WithMaxRetries(3))

	var calls int
	handler := idempotency.Middleware(ledger)(func(e memq.Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.Error(t, handler(newTestEvent("msg-1")))
	require.NoError(t, handler(newTestEvent("msg-1")))
	require.Equal(t, 2, calls)

	// completed now, third delivery is a replay
	require.NoError(t, handler(newTestEvent("msg-1")))
	require.Equal(t, 2, calls)
}

func TestMiddlewareKeyPrefixSeparatesLedgerUsers(t *testing.T) {
	ledger := newMiddlewareLedger(t)

	var calls int
	work := func(e memq.Event) error {
		calls++
		return nil
	}

	blue := idempotency.Middleware(ledger, idempotency.WithKeyPrefix("blue/"))(work)
	green := idempotency.Middleware(ledger, idempotency.WithKeyPrefix("green/"))(work)

	require.NoError(t, blue(newTestEvent("msg-1")))
	require.NoError(t, green(newTestEvent("msg-1")))
	require.Equal(t, 2, calls)
}

func TestMiddlewarePanicsOnNilLedger(t *testing.T) {
	require.Panics(t, func() {
		idempotency.Middleware(nil)
	})
}
