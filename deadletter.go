package memq

import "time"

// DeadLetter is a message that exhausted its retry budget, kept for manual
// inspection and replay.
type DeadLetter struct {
	Message  *Message
	Reason   string
	FailedAt time.Time
}

// deadLetterRing is a fixed-capacity FIFO of dead letters. Inserting beyond
// capacity evicts the oldest entry. It is not safe for concurrent use; the
// broker serializes access through its own mutex.
type deadLetterRing struct {
	entries []DeadLetter
	cap     int
}

func newDeadLetterRing(capacity int) *deadLetterRing {
	return &deadLetterRing{cap: capacity}
}

func (r *deadLetterRing) push(d DeadLetter) {
	if len(r.entries) == r.cap {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.cap-1]
	}
	r.entries = append(r.entries, d)
}

// list returns a snapshot of the ring, oldest first.
func (r *deadLetterRing) list() []DeadLetter {
	out := make([]DeadLetter, len(r.entries))
	copy(out, r.entries)
	return out
}

// remove deletes the entry whose message has the given id and returns it.
func (r *deadLetterRing) remove(id string) (DeadLetter, bool) {
	for i, d := range r.entries {
		if d.Message.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return d, true
		}
	}
	return DeadLetter{}, false
}

func (r *deadLetterRing) len() int {
	return len(r.entries)
}
