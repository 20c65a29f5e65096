package internal

import (
	"sync"
)

// reservoir grants up to quota unconditional samples per wall-clock second.
type reservoir struct {
	// Samples allowed per second, equal to the rule's fixed target.
	quota uint64

	// Samples granted in the current window.
	used uint64

	// Unix second the current window belongs to.
	windowStart int64

	mu sync.Mutex
}

func newReservoir(quota uint64) *reservoir {
	return &reservoir{quota: quota}
}

// take rolls the window over when nowSecond differs from the current window,
// then claims one unit if any remain. Both steps run under the same lock so
// every caller sees rollover before claim.
func (r *reservoir) take(nowSecond int64) bool {
	if r.quota == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if nowSecond != r.windowStart {
		r.windowStart = nowSecond
		r.used = 0
	}

	if r.used < r.quota {
		r.used++
		return true
	}
	return false
}
