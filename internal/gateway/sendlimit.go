package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// sendLimiter paces outbound frames with a token bucket so a burst of
// queued traffic after a reconnect cannot flood the coordinator.
// A rate <= 0 disables pacing entirely.
type sendLimiter struct {
	limiter *rate.Limiter
}

// newSendLimiter creates a limiter allowing perSecond frames per second
// with the given burst. Returns a disabled limiter when perSecond <= 0.
func newSendLimiter(perSecond float64, burst int) *sendLimiter {
	if perSecond <= 0 {
		return &sendLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &sendLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// wait blocks until a send is allowed or ctx is done.
func (l *sendLimiter) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
