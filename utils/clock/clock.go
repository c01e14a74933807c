package clock

import (
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	offset time.Duration
)

// Set shifts the clock so that Now() returns start at the
// moment of the call and keeps ticking from there. Calling
// Set with no argument resets to wall time.
func Set(start ...time.Time) {
	mu.Lock()
	defer mu.Unlock()

	if len(start) == 0 {
		offset = 0
		return
	}
	offset = start[0].Sub(time.Now())
}

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return time.Now().Add(offset).UTC()
}

func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
