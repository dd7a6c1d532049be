package memq

import (
	"context"
	"time"
)

// Message is the unit of work moved through the broker.
type Message struct {
	// ID must uniquely identify the message. The broker assigns an ID at
	// publish time when it is left empty; it is never changed afterwards.
	ID string
	// Channel is the origin tag the message was published to.
	Channel string
	// Header includes additional service data
	Header Header
	// Body is message payload. The broker never inspects it.
	Body []byte
	// Attempt is the number of delivery attempts made so far. It is zero on
	// first enqueue, incremented by the retry scheduler after each failure,
	// and reset to zero when a dead-lettered message is requeued.
	Attempt int
	// EnqueuedAt is the time the message entered the queue.
	EnqueuedAt time.Time

	ctx context.Context
}

// NewMessage initializes message
func NewMessage() *Message {
	return &Message{
		Header: make(Header),
	}
}

// Context returns the context carried by the message, defaulting to
// context.Background. Middleware such as tracing uses it to propagate
// request-scoped values into the handler.
func (m *Message) Context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// SetContext attaches a context to the message.
func (m *Message) SetContext(ctx context.Context) {
	m.ctx = ctx
}
