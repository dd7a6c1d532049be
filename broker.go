package memq

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/linger"
	"github.com/google/uuid"
)

// Stats is a point-in-time view of the broker workload.
type Stats struct {
	// Active counts messages that are queued, in flight, or waiting out a
	// retry delay.
	Active int
	// DeadLettered counts entries currently held by the dead-letter sink.
	DeadLettered int
	// Running reports whether the dispatcher loop is currently active.
	Running bool
}

// Broker is an in-process message queue with a single dispatching consumer.
//
// Messages are processed strictly sequentially in publish order. A failed
// delivery is redelivered at the head of the queue after a back-off delay,
// so retries take priority over later-published messages. Messages that
// exhaust the retry budget move to a bounded dead-letter sink.
type Broker struct {
	opts Options

	// lifetime bounds the dispatcher and every pending retry wait; Close
	// cancels it.
	lifetime context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	queue     []*Message
	dead      *deadLetterRing
	handler   Handler
	running   bool
	closed    bool
	inflight  int
	retryWait int

	wg sync.WaitGroup
}

// New initializes a broker. Configuration errors are reported here, never at
// publish time.
func New(opts ...Option) (*Broker, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Broker{
		opts:     o,
		lifetime: ctx,
		cancel:   cancel,
		dead:     newDeadLetterRing(o.DeadLetterCapacity),
	}, nil
}

// Subscribe registers the handler that receives every published message,
// wrapped in the given middleware. The broker has exactly one consumer;
// calling Subscribe again returns AlreadySubscribed.
//
// Messages published before Subscribe stay queued and are dispatched as soon
// as the handler is registered.
func (b *Broker) Subscribe(handler Handler, middleware ...Middleware) error {
	for _, mw := range middleware {
		handler = mw(handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.handler != nil {
		return AlreadySubscribed
	}
	b.handler = handler
	b.wake()

	return nil
}

// Publish appends the message to the tail of the queue and returns its id.
// It never blocks; the only possible error is ErrClosed.
func (b *Broker) Publish(channel string, msg *Message) (string, error) {
	if msg == nil {
		msg = NewMessage()
	}
	if msg.Header == nil {
		msg.Header = make(Header)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Channel = channel
	msg.EnqueuedAt = b.opts.Now()
	msg.Header.SetCreatedAt(msg.EnqueuedAt.Unix())

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrClosed
	}
	b.queue = append(b.queue, msg)
	b.wake()

	return msg.ID, nil
}

// PublishBody publishes a message carrying the given payload.
func (b *Broker) PublishBody(channel string, body []byte) (string, error) {
	msg := NewMessage()
	msg.Body = body
	return b.Publish(channel, msg)
}

// DeadLetters returns a snapshot of the dead-letter sink, oldest first.
func (b *Broker) DeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dead.list()
}

// Requeue moves the dead-lettered message with the given id back to the tail
// of the queue with its attempt counter reset. It returns false if no such
// entry exists.
func (b *Broker) Requeue(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	d, ok := b.dead.remove(id)
	if !ok {
		return false
	}

	d.Message.Attempt = 0
	b.queue = append(b.queue, d.Message)
	b.wake()

	return true
}

// Stats returns point-in-time counts.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Active:       len(b.queue) + b.inflight + b.retryWait,
		DeadLettered: b.dead.len(),
		Running:      b.running,
	}
}

// Close stops the broker: no new messages are accepted, the in-flight
// handler invocation is allowed to finish, and pending retry waits are
// cancelled. It is safe to call more than once.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	return nil
}

// wake starts the dispatcher when there is work and nobody is dispatching.
// The caller must hold b.mu.
func (b *Broker) wake() {
	if b.running || b.closed || b.handler == nil || len(b.queue) == 0 {
		return
	}
	b.running = true
	b.wg.Add(1)
	go b.dispatch()
}

// dispatch pops messages off the head of the queue and hands them to the
// handler one at a time. It exits when the queue drains or the broker
// closes; wake starts a fresh loop on the next publish or reinsertion.
func (b *Broker) dispatch() {
	defer b.wg.Done()

	for {
		b.mu.Lock()
		if b.closed || len(b.queue) == 0 {
			b.running = false
			b.mu.Unlock()
			return
		}
		msg := b.queue[0]
		b.queue = b.queue[1:]
		handler := b.handler
		b.inflight++
		b.mu.Unlock()

		err := b.deliver(handler, msg)

		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()

		if err != nil {
			b.fail(msg, err)
		}
	}
}

// deliver invokes the handler, converting a panic into a regular delivery
// failure so the dispatcher loop survives misbehaving handlers.
func (b *Broker) deliver(handler Handler, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(&event{msg: msg})
}

// fail routes a failed message to the retry scheduler or, when the retry
// budget is exhausted, to the dead-letter sink.
func (b *Broker) fail(msg *Message, cause error) {
	msg.Attempt++

	if msg.Attempt > b.opts.MaxRetries {
		b.deadLetter(msg, cause)
		return
	}

	delay := b.opts.RetryPolicy.Delay(msg.Attempt)
	if log := b.opts.Logger; log != nil {
		log.Warn("delivery failed, retry scheduled",
			"messageId", msg.ID,
			"channel", msg.Channel,
			"attempt", msg.Attempt,
			"delay", delay,
			"error", cause.Error(),
		)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.retryWait++
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		// The wait runs concurrently with the dispatcher; only this
		// message's reinsertion is delayed. Close cancels the lifetime
		// context, so no timer outlives the broker.
		err := linger.Sleep(b.lifetime, delay)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.retryWait--
		if err != nil || b.closed {
			return
		}
		b.queue = append([]*Message{msg}, b.queue...)
		b.wake()
	}()
}

// deadLetter moves the message into the sink and fires the configured hook.
func (b *Broker) deadLetter(msg *Message, cause error) {
	msg.Header.SetFailureReason(cause.Error())

	d := DeadLetter{
		Message:  msg,
		Reason:   cause.Error(),
		FailedAt: b.opts.Now(),
	}

	b.mu.Lock()
	b.dead.push(d)
	b.mu.Unlock()

	if log := b.opts.Logger; log != nil {
		log.Error("retries exhausted, message dead-lettered",
			"messageId", msg.ID,
			"channel", msg.Channel,
			"attempts", msg.Attempt,
			"error", cause.Error(),
		)
	}
	if b.opts.DeadLetterHook != nil {
		b.opts.DeadLetterHook(d)
	}
}

// event adapts a queued message to the Event interface handed to handlers.
type event struct {
	msg *Message
}

func (e *event) Channel() string   { return e.msg.Channel }
func (e *event) Message() *Message { return e.msg }
