package retry

import (
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Backoff returns the delay before attempt n+1 and whether retries are exhausted.
type Backoff interface {
	Delay(n uint) (time.Duration, bool)
}

// Jitter picks a delay in [0, n).
type Jitter func(n int64) int64

type noRetry struct{}

func NoRetry() Backoff {
	return noRetry{}
}

func (noRetry) Delay(uint) (time.Duration, bool) {
	return 0, true
}

// Exponential doubles Base per attempt up to Max, with full jitter.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries uint
	Jitter     Jitter
}

func (e *Exponential) Delay(n uint) (time.Duration, bool) {
	if n >= e.MaxRetries {
		return 0, true
	}

	ceiling := int64(e.Max)
	if n < 63 {
		if d, ok := mulInt64(int64(1)<<n, int64(e.Base)); ok {
			ceiling = smaller(d, ceiling)
		}
	}
	if ceiling <= 0 {
		return 0, false
	}
	return time.Duration(e.jitter()(ceiling)), false
}

func (e *Exponential) jitter() Jitter {
	if e.Jitter == nil {
		return rand.Int63n
	}
	return e.Jitter
}

func smaller[T constraints.Ordered](l, r T) T {
	if l > r {
		return r
	}
	return l
}

func mulInt64(l, r int64) (int64, bool) {
	if l == 0 || r == 0 {
		return 0, true
	}
	if l > math.MaxInt64/r {
		return 0, false
	}
	return l * r, true
}
