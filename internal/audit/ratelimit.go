package audit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ethicore/arbiter/internal/types"
)

// RateLimitedSink wraps a sink with a token-bucket limiter. It shields
// a slow downstream ledger from decision bursts; Append blocks until a
// token is available or the caller's context expires.
type RateLimitedSink struct {
	next    Sink
	limiter *rate.Limiter
}

// NewRateLimitedSink caps appends at perSecond with the given burst.
func NewRateLimitedSink(next Sink, perSecond float64, burst int) *RateLimitedSink {
	return &RateLimitedSink{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Append waits for limiter capacity, then forwards the decision.
func (s *RateLimitedSink) Append(ctx context.Context, d types.Decision) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.next.Append(ctx, d)
}
