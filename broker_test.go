package memq_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ahmedboeni/memq"
	"github.com/ahmedboeni/memq/zaplog"
)

// waitUntil polls cond until it holds or the timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func newTestBroker(t *testing.T, opts ...memq.Option) *memq.Broker {
	t.Helper()
	opts = append([]memq.Option{
		memq.WithBaseRetryDelay(time.Millisecond),
		memq.WithLogger(zaplog.NewLogger(zaptest.NewLogger(t))),
	}, opts...)
	b, err := memq.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPublishProcessesAllMessagesInOrder(t *testing.T) {
	b := newTestBroker(t)

	var mu sync.Mutex
	var got []string

	err := b.Subscribe(func(e memq.Event) error {
		mu.Lock()
		got = append(got, string(e.Message().Body))
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	const n = 25
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		body := fmt.Sprintf("msg-%d", i)
		want = append(want, body)
		id, err := b.PublishBody("events", []byte(body))
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}

	waitUntil(t, time.Second, func() bool { return b.Stats().Active == 0 })

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, got)
	require.Empty(t, b.DeadLetters())
}

func TestPublishBeforeSubscribeIsDispatchedLater(t *testing.T) {
	b := newTestBroker(t)

	_, err := b.PublishBody("events", []byte("early"))
	require.NoError(t, err)
	require.Equal(t, 1, b.Stats().Active)

	done := make(chan string, 1)
	require.NoError(t, b.Subscribe(func(e memq.Event) error {
		done <- string(e.Message().Body)
		return nil
	}))

	select {
	case body := <-done:
		require.Equal(t, "early", body)
	case <-time.After(time.Second):
		t.Fatal("message was not dispatched after Subscribe")
	}
}

func TestRetryThenSuccessNeverDeadLetters(t *testing.T) {
	b := newTestBroker(t, memq.WithMaxRetries(3))

	var mu sync.Mutex
	var attempts []int

	require.NoError(t, b.Subscribe(func(e memq.Event) error {
		mu.Lock()
		attempts = append(attempts, e.Message().Attempt)
		n := len(attempts)
		mu.Unlock()
		if n <= 2 {
			return errors.New("transient failure")
		}
		return nil
	}))

	_, err := b.PublishBody("events", []byte("flaky"))
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool { return b.Stats().Active == 0 })

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2}, attempts)
	require.Empty(t, b.DeadLetters())
}

func TestRetriesExhaustedMovesToDeadLetter(t *testing.T) {
	b := newTestBroker(t, memq.WithMaxRetries(2))

	var mu sync.Mutex
	invocations := 0

	require.NoError(t, b.Subscribe(func(memq.Event) error {
		mu.Lock()
		invocations++
		mu.Unlock()
		return errors.New("permanent failure")
	}))

	id, err := b.PublishBody("events", []byte("doomed"))
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool {
		s := b.Stats()
		return s.Active == 0 && s.DeadLettered == 1
	})

	mu.Lock()
	require.Equal(t, 3, invocations) // first delivery + 2 retries
	mu.Unlock()

	dead := b.DeadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, id, dead[0].Message.ID)
	require.Equal(t, "permanent failure", dead[0].Reason)
	require.Equal(t, "permanent failure", dead[0].Message.Header.GetFailureReason())
	require.Equal(t, 3, dead[0].Message.Attempt)
}

func TestDeadLetterSinkEvictsOldest(t *testing.T) {
	b := newTestBroker(t,
		memq.WithMaxRetries(0),
		memq.WithDeadLetterCapacity(2),
	)

	require.NoError(t, b.Subscribe(func(memq.Event) error {
		return errors.New("nope")
	}))

	ids := make([]string, 3)
	for i := range ids {
		id, err := b.PublishBody("events", []byte(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		ids[i] = id
		waitUntil(t, time.Second, func() bool { return b.Stats().Active == 0 })
	}

	dead := b.DeadLetters()
	require.Len(t, dead, 2)
	require.Equal(t, ids[1], dead[0].Message.ID)
	require.Equal(t, ids[2], dead[1].Message.ID)
}

func TestRequeueResetsAttemptAndReturnsTrueOnce(t *testing.T) {
	b := newTestBroker(t, memq.WithMaxRetries(0))

	var mu sync.Mutex
	var attempts []int
	fail := true

	require.NoError(t, b.Subscribe(func(e memq.Event) error {
		mu.Lock()
		attempts = append(attempts, e.Message().Attempt)
		shouldFail := fail
		mu.Unlock()
		if shouldFail {
			return errors.New("broken dependency")
		}
		return nil
	}))

	id, err := b.PublishBody("events", []byte("replay me"))
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool { return b.Stats().DeadLettered == 1 })

	mu.Lock()
	fail = false
	mu.Unlock()

	require.True(t, b.Requeue(id))
	waitUntil(t, time.Second, func() bool {
		s := b.Stats()
		return s.Active == 0 && s.DeadLettered == 0
	})

	mu.Lock()
	require.Equal(t, []int{0, 0}, attempts)
	mu.Unlock()

	require.False(t, b.Requeue(id))
}

func TestRetryReentersAtHeadOfQueue(t *testing.T) {
	b := newTestBroker(t, memq.WithMaxRetries(1))

	var mu sync.Mutex
	var order []string
	release := make(chan struct{})

	require.NoError(t, b.Subscribe(func(e memq.Event) error {
		body := string(e.Message().Body)
		mu.Lock()
		order = append(order, body)
		mu.Unlock()

		if body == "A" && e.Message().Attempt == 0 {
			return errors.New("fail once")
		}
		if body == "B" {
			// Hold the dispatcher so A's retry delay elapses while B is in
			// flight; the reinsertion must land ahead of C.
			<-release
		}
		return nil
	}))

	for _, body := range []string{"A", "B", "C"} {
		_, err := b.PublishBody("events", []byte(body))
		require.NoError(t, err)
	}

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2 // A (failed) and B (blocked) have been delivered
	})
	time.Sleep(20 * time.Millisecond) // let the 1ms retry timer reinsert A
	close(release)

	waitUntil(t, time.Second, func() bool { return b.Stats().Active == 0 })

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"A", "B", "A", "C"}, order)
}

func TestHandlerPanicIsTreatedAsFailure(t *testing.T) {
	b := newTestBroker(t, memq.WithMaxRetries(0))

	require.NoError(t, b.Subscribe(func(memq.Event) error {
		panic("boom")
	}))

	_, err := b.PublishBody("events", []byte("panicky"))
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool { return b.Stats().DeadLettered == 1 })

	dead := b.DeadLetters()
	require.Len(t, dead, 1)
	require.Contains(t, dead[0].Reason, "handler panic")
}

func TestDeadLetterHookIsInvoked(t *testing.T) {
	hooked := make(chan memq.DeadLetter, 1)

	b := newTestBroker(t,
		memq.WithMaxRetries(0),
		memq.WithDeadLetterHook(func(d memq.DeadLetter) {
			hooked <- d
		}),
	)

	require.NoError(t, b.Subscribe(func(memq.Event) error {
		return errors.New("no luck")
	}))

	id, err := b.PublishBody("events", []byte("observed"))
	require.NoError(t, err)

	select {
	case d := <-hooked:
		require.Equal(t, id, d.Message.ID)
		require.Equal(t, "no luck", d.Reason)
	case <-time.After(time.Second):
		t.Fatal("dead-letter hook was not invoked")
	}
}

func TestCloseCancelsPendingRetry(t *testing.T) {
	b := newTestBroker(t,
		memq.WithMaxRetries(1),
		memq.WithBaseRetryDelay(time.Hour),
	)

	delivered := make(chan struct{}, 2)
	require.NoError(t, b.Subscribe(func(memq.Event) error {
		delivered <- struct{}{}
		return errors.New("try later")
	}))

	_, err := b.PublishBody("events", []byte("stuck"))
	require.NoError(t, err)
	<-delivered

	waitUntil(t, time.Second, func() bool { return !b.Stats().Running })

	done := make(chan struct{})
	go func() {
		_ = b.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the pending retry wait")
	}

	select {
	case <-delivered:
		t.Fatal("message was redelivered after Close")
	default:
	}
}

func TestPublishAfterCloseReturnsErrClosed(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.Close())

	_, err := b.PublishBody("events", []byte("late"))
	require.ErrorIs(t, err, memq.ErrClosed)
}

func TestSubscribeTwiceReturnsAlreadySubscribed(t *testing.T) {
	b := newTestBroker(t)

	noop := func(memq.Event) error { return nil }
	require.NoError(t, b.Subscribe(noop))
	require.ErrorIs(t, b.Subscribe(noop), memq.AlreadySubscribed)
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	_, err := memq.New(memq.WithMaxRetries(-1))
	require.Error(t, err)

	_, err = memq.New(memq.WithDeadLetterCapacity(0))
	require.Error(t, err)

	_, err = memq.New(memq.WithBaseRetryDelay(0))
	require.Error(t, err)
}

func TestPublishPreservesCallerAssignedID(t *testing.T) {
	b := newTestBroker(t)

	msg := memq.NewMessage()
	msg.ID = "caller-chosen"
	id, err := b.Publish("events", msg)
	require.NoError(t, err)
	require.Equal(t, "caller-chosen", id)
	require.NotZero(t, msg.Header.GetCreatedAt())
}
