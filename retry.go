package memq

import (
	"math/rand"
	"time"
)

// RetryPolicy is an interface for determining how long to delay a failed
// message before it is redelivered.
type RetryPolicy interface {
	// Delay returns the back-off duration for the given attempt.
	// The attempt is 1-indexed: the first retry passes attempt == 1.
	Delay(attempt int) time.Duration
}

// ExponentialBackoff is a retry policy that doubles the delay with every
// failed attempt.
type ExponentialBackoff struct {
	// Base is the delay of the first retry.
	Base time.Duration
	// Max caps the computed delay. Zero means no cap.
	Max time.Duration
	// Jitter randomly extends the delay by up to the given fraction
	// (0.1 == up to 10% longer). Left at zero the delay sequence is exactly
	// Base, 2*Base, 4*Base, ...
	Jitter float64
}

// Delay returns Base * 2^(attempt-1), capped at Max.
func (p ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			d = p.Max
			break
		}
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}

	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}

	return d
}
