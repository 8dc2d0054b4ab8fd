package sources

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy returns the delay before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// FibonacciBackoff waits Base, Base, 2*Base, 3*Base, 5*Base, ... between attempts
type FibonacciBackoff struct {
	Base     time.Duration
	MaxDelay time.Duration
	// JitterFactor in [0,1] subtracts up to that fraction of each delay at random.
	JitterFactor float64
}

func DefaultFibonacciBackoff() *FibonacciBackoff {
	return &FibonacciBackoff{
		Base:         time.Second,
		JitterFactor: 0.1,
	}
}

func (fb *FibonacciBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	a, b := int64(1), int64(1)
	for i := 1; i < attempt; i++ {
		a, b = b, a+b
		if a > 1<<32 {
			break
		}
	}

	delay := time.Duration(a) * fb.Base
	if fb.MaxDelay > 0 && delay > fb.MaxDelay {
		delay = fb.MaxDelay
	}

	if fb.JitterFactor > 0 {
		delay -= time.Duration(rand.Float64() * fb.JitterFactor * float64(delay))
	}
	return delay
}

// wait blocks for delay or until ctx is done
func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
