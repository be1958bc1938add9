package analyst

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces out reasoner calls to a requests-per-minute budget.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows rpm calls per minute with a burst of one. rpm <= 0
// disables throttling.
func NewThrottle(rpm int) *Throttle {
	if rpm <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)}
}

// Wait blocks until a call is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
