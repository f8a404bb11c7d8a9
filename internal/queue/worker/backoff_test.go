package worker

import (
	"testing"
	"time"
)

func TestExponentialBackoffGrows(t *testing.T) {
	prev := time.Duration(0)

	for attempt := 0; attempt < 5; attempt++ {
		d := ExponentialBackoff(attempt)

		// jitter adds at most 250ms, so strict doubling still dominates
		if d <= prev {
			t.Fatalf("attempt %d: delay %v not greater than previous %v", attempt, d, prev)
		}

		prev = d
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	capDelay := 5*time.Minute + 250*time.Millisecond

	for _, attempt := range []int{10, 20, 40, 100} {
		d := ExponentialBackoff(attempt)

		if d > capDelay {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, capDelay)
		}

		if d <= 0 {
			t.Fatalf("attempt %d: non-positive delay %v", attempt, d)
		}
	}
}
