package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const keySeparator = ":"

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrInProgress is returned when another execution holds the key.
	ErrInProgress = Error("action is already in progress")
	// ErrRetriesExhausted is returned when the key failed too many times.
	ErrRetriesExhausted = Error("action retries exhausted")
	// ErrMissingKey is returned by the middleware when no idempotency key
	// can be resolved and keys are required.
	ErrMissingKey = Error("idempotency key is missing")
)

// Status is the lifecycle state of a Record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Reason tells a caller why an action may not proceed.
type Reason string

const (
	ReasonInProgress       Reason = "in progress"
	ReasonAlreadyCompleted Reason = "already completed"
	ReasonMaxRetries       Reason = "max retries exceeded"
)

// Record tracks the lifecycle of one logical action per (actor, action) key.
type Record struct {
	ActorID  string
	ActionID string
	Status   Status
	// Result is the cached outcome; present only when Status is
	// StatusCompleted.
	Result []byte
	// LastError is the text of the most recent failure.
	LastError string
	Metadata  map[string]string
	// RetryCount is the number of failed executions recorded under this key.
	RetryCount  int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt time.Time
}

// Decision is the outcome of a Check call.
type Decision struct {
	// CanProceed is true when the key is free to be executed: the record is
	// absent, expired, or failed with retry budget remaining.
	CanProceed bool
	Reason     Reason
	// Record is a copy of the existing record, if any. On an
	// "already completed" decision it carries the cached result.
	Record *Record
}

// Action is the side-effecting operation guarded by the ledger.
type Action func(ctx context.Context) ([]byte, error)

// Execution is the outcome of Execute.
type Execution struct {
	Result []byte
	// Replayed is true when the result was answered from a completed record
	// without invoking the action.
	Replayed bool
}

// Stats is a point-in-time count of ledger records per status.
type Stats struct {
	Pending   int
	Completed int
	Failed    int
	Total     int
}

// Ledger deduplicates side-effecting actions. Records expire after the
// configured TTL and are removed by a background sweep; an expired record is
// treated as absent even before the sweep reaches it.
type Ledger struct {
	opts LedgerOptions

	mu      sync.Mutex
	records map[string]*Record

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// NewLedger initializes a ledger and starts its background sweep.
// Configuration errors are reported here, never at call time.
func NewLedger(opts ...LedgerOption) (*Ledger, error) {
	o, err := newLedgerOptions(opts...)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		opts:      o,
		records:   make(map[string]*Record),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go l.sweeper()

	return l, nil
}

// Close stops the background sweep. It is safe to call more than once.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		close(l.sweepStop)
		<-l.sweepDone
	})
}

// Check reports whether an action identified by (actorID, actionID) may
// proceed. An expired record is deleted and treated as absent. A completed
// record blocks execution and exposes the cached result; a pending record
// blocks with ReasonInProgress; a failed record blocks only once its retry
// budget is exhausted.
func (l *Ledger) Check(actorID, actionID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(actorID, actionID)
}

// Store creates (or overwrites) a pending record with a fresh expiry. It
// must only be called after Check allowed the key to proceed; the retry
// count of a failed record survives the re-entry to keep the budget honest.
func (l *Ledger) Store(actorID, actionID string, metadata map[string]string) *Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyRecord(l.storeLocked(actorID, actionID, metadata))
}

// MarkCompleted transitions a pending record to completed and caches the
// result. It returns false when no record exists for the key.
func (l *Ledger) MarkCompleted(actorID, actionID string, result []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.liveLocked(actorID, actionID)
	if !ok {
		return false
	}
	rec.Status = StatusCompleted
	rec.Result = cloneBytes(result)
	rec.CompletedAt = l.opts.Now()

	return true
}

// MarkFailed transitions a pending record to failed, recording the cause and
// consuming one unit of the retry budget. It returns false when no record
// exists for the key.
func (l *Ledger) MarkFailed(actorID, actionID string, cause error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.liveLocked(actorID, actionID)
	if !ok {
		return false
	}
	rec.Status = StatusFailed
	rec.RetryCount++
	if cause != nil {
		rec.LastError = cause.Error()
	}

	return true
}

// Execute runs the action at most once per (actorID, actionID) key within
// the record TTL.
//
// A completed key returns the cached result with Replayed set, without
// invoking the action. A pending key returns ErrInProgress; a key that
// exhausted its retry budget returns ErrRetriesExhausted. Otherwise the key
// is stored as pending, the action is invoked exactly once, and the outcome
// is recorded. Action panics are recovered and treated as failures.
func (l *Ledger) Execute(ctx context.Context, actorID, actionID string, action Action) (Execution, error) {
	l.mu.Lock()
	d := l.checkLocked(actorID, actionID)
	if !d.CanProceed {
		l.mu.Unlock()
		switch d.Reason {
		case ReasonAlreadyCompleted:
			return Execution{Result: d.Record.Result, Replayed: true}, nil
		case ReasonMaxRetries:
			return Execution{}, ErrRetriesExhausted
		default:
			return Execution{}, ErrInProgress
		}
	}
	l.storeLocked(actorID, actionID, nil)
	l.mu.Unlock()

	result, err := runAction(ctx, action)
	if err != nil {
		l.MarkFailed(actorID, actionID, err)
		return Execution{}, err
	}
	l.MarkCompleted(actorID, actionID, result)

	return Execution{Result: result}, nil
}

// Sweep removes every expired record and returns the number removed.
func (l *Ledger) Sweep() int {
	now := l.opts.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, rec := range l.records {
		if now.After(rec.ExpiresAt) {
			delete(l.records, k)
			removed++
		}
	}

	return removed
}

// Stats returns point-in-time record counts.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Stats
	for _, rec := range l.records {
		switch rec.Status {
		case StatusPending:
			s.Pending++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	s.Total = len(l.records)

	return s
}

func (l *Ledger) sweeper() {
	defer close(l.sweepDone)

	ticker := time.NewTicker(l.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.sweepStop:
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 && l.opts.Logger != nil {
				l.opts.Logger.Debug("swept expired idempotency records", "removed", n)
			}
		}
	}
}

func (l *Ledger) checkLocked(actorID, actionID string) Decision {
	rec, ok := l.liveLocked(actorID, actionID)
	if !ok {
		return Decision{CanProceed: true}
	}

	switch rec.Status {
	case StatusCompleted:
		return Decision{Reason: ReasonAlreadyCompleted, Record: copyRecord(rec)}
	case StatusFailed:
		if rec.RetryCount >= l.opts.MaxRetries {
			return Decision{Reason: ReasonMaxRetries, Record: copyRecord(rec)}
		}
		return Decision{CanProceed: true, Record: copyRecord(rec)}
	default:
		return Decision{Reason: ReasonInProgress, Record: copyRecord(rec)}
	}
}

func (l *Ledger) storeLocked(actorID, actionID string, metadata map[string]string) *Record {
	now := l.opts.Now()
	k := recordKey(actorID, actionID)

	retryCount := 0
	if prev, ok := l.records[k]; ok {
		retryCount = prev.RetryCount
	}

	rec := &Record{
		ActorID:    actorID,
		ActionID:   actionID,
		Status:     StatusPending,
		Metadata:   metadata,
		RetryCount: retryCount,
		CreatedAt:  now,
		ExpiresAt:  now.Add(l.opts.TTL),
	}
	l.records[k] = rec

	return rec
}

// liveLocked returns the record for the key, deleting and ignoring it when
// it has expired.
func (l *Ledger) liveLocked(actorID, actionID string) (*Record, bool) {
	k := recordKey(actorID, actionID)

	rec, ok := l.records[k]
	if !ok {
		return nil, false
	}
	if l.opts.Now().After(rec.ExpiresAt) {
		delete(l.records, k)
		return nil, false
	}

	return rec, true
}

func runAction(ctx context.Context, action Action) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return action(ctx)
}

func recordKey(actorID, actionID string) string {
	return actorID + keySeparator + actionID
}

func copyRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	cp := *rec
	cp.Result = cloneBytes(rec.Result)
	if rec.Metadata != nil {
		cp.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
