package enrich

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// throttle caps both the request rate and the number of calls in flight to a
// paid provider. A nil throttle lets everything through.
type throttle struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

func newThrottle(perSecond float64, burst, maxConcurrent int) *throttle {
	t := &throttle{}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	if maxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return t
}

// acquire blocks until a call may start. The returned func must be called
// when the call completes.
func (t *throttle) acquire(ctx context.Context) (func(), error) {
	if t == nil {
		return func() {}, nil
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if t.sem == nil {
		return func() {}, nil
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("concurrency limit: %w", err)
	}
	return func() { t.sem.Release(1) }, nil
}
