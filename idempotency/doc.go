// Package idempotency provides an in-memory ledger that deduplicates
// side-effecting actions keyed by (actor, action) identity, and a broker
// middleware for idempotent message handling backed by that ledger.
//
// The ledger tracks each logical action through a small state machine
// (Pending, Completed, Failed). Execute acquires the key, runs the action at
// most once, and records the outcome; repeated executions within the record
// TTL are answered from the cached result. Expired records are removed by a
// background sweep.
package idempotency
