package usecase

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// defaultMaxConcurrent is the ceiling on simultaneous outbound provider
// calls when no limit is configured.
const defaultMaxConcurrent = 5

// CallLimiter bounds simultaneous outbound provider calls process-wide.
// Both the single-lookup and batch paths draw from the same gate, so the
// ceiling holds regardless of how many lookups are in flight.
type CallLimiter struct {
	sem *semaphore.Weighted
}

// NewCallLimiter creates a limiter allowing max simultaneous calls.
func NewCallLimiter(max int64) *CallLimiter {
	if max <= 0 {
		max = defaultMaxConcurrent
	}
	return &CallLimiter{sem: semaphore.NewWeighted(max)}
}

// Acquire blocks until a slot frees or the context is done.
func (l *CallLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (l *CallLimiter) Release() {
	l.sem.Release(1)
}
