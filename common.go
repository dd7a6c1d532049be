package memq

// Handler is used to process messages delivered by the dispatcher.
// Returning a nil error marks the message as processed; a non-nil error
// sends it through the retry scheduler and, once the retry budget is
// exhausted, to the dead-letter sink.
type Handler func(Event) error

// Middleware defines a function type that takes a Handler and returns a
// modified Handler. It is used to intercept and optionally modify the
// behavior of the Handler function. This can include pre-processing or
// post-processing steps, logging, panic recovery, idempotency checks, or any
// other form of message manipulation.
//
// Middleware functions can be chained together to create a pipeline of
// handlers that process an Event before it reaches the final Handler.
//
// Example:
//
//	func MyMiddleware(next Handler) Handler {
//	    return func(e Event) error {
//	        // Pre-processing logic here
//	        err := next(e)
//	        // Post-processing logic here
//	        return err
//	    }
//	}
type Middleware func(Handler) Handler

// Event is given to the registered handler for processing
type Event interface {
	// Channel is the origin tag the message was published to
	Channel() string
	Message() *Message
}

// Logger abstracts the logging functionality
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
