package memq_test

import (
	"testing"
	"time"

	. "github.com/ahmedboeni/memq"
)

func TestExponentialBackoffDoublesPerAttempt(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
	}
	for i, expected := range want {
		if got := p.Delay(i + 1); got != expected {
			t.Errorf("Delay(%d) = %s; want %s", i+1, got, expected)
		}
	}
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: 5 * time.Second}

	if got := p.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %s; want cap of 5s", got)
	}
	// large attempt counts must not overflow
	if got := p.Delay(100); got != 5*time.Second {
		t.Errorf("Delay(100) = %s; want cap of 5s", got)
	}
}

func TestExponentialBackoffClampsAttempt(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second}

	if got := p.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %s; want %s", got, time.Second)
	}
	if got := p.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %s; want %s", got, time.Second)
	}
}

func TestExponentialBackoffJitterExtendsDelay(t *testing.T) {
	p := ExponentialBackoff{Base: 100 * time.Millisecond, Jitter: 0.5}

	base := 100 * time.Millisecond
	varied := false
	for i := 0; i < 100; i++ {
		got := p.Delay(1)
		if got < base || got > base+base/2 {
			t.Fatalf("Delay(1) = %s; want within [%s, %s]", got, base, base+base/2)
		}
		if got != base {
			varied = true
		}
	}
	if !varied {
		t.Error("100 iterations returned results with no jitter")
	}
}
