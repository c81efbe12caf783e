package websearch

import (
	"context"
	"math/rand/v2"

	"golang.org/x/time/rate"
)

// Jitter bounds applied to every interval between requests.
const (
	jitterMin = 0.7
	jitterMax = 1.3
)

// Pacer spaces requests to one provider at roughly 1/rps apart, with each
// interval scaled by a random factor so calls don't arrive on a fixed beat.
// A nil Pacer never waits.
type Pacer struct {
	rps     float64
	limiter *rate.Limiter
	jitter  func() float64
}

// NewPacer returns a pacer for rps requests per second. It returns nil
// when rps is not positive.
func NewPacer(rps float64) *Pacer {
	if rps <= 0 {
		return nil
	}
	return &Pacer{
		rps:     rps,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		jitter: func() float64 {
			return jitterMin + rand.Float64()*(jitterMax-jitterMin)
		},
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.limiter.SetLimit(rate.Limit(p.rps / p.jitter()))
	return p.limiter.Wait(ctx)
}
