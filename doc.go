// Package memq provides an in-process message broker with automatic retry,
// exponential backoff, and a bounded dead-letter sink.
//
// A Broker owns an ordered queue of messages and a single dispatcher
// goroutine that delivers them, one at a time, to the registered Handler.
// Failed deliveries are rescheduled with backoff until the retry budget is
// exhausted, at which point the message moves to the dead-letter sink where
// it can be inspected and requeued.
//
// The broker never interprets message payloads. Deduplication of
// side-effecting work is provided separately by the idempotency subpackage.
package memq
