package sink

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/bamsammich/shuttle/internal/engine"
)

// NewBWLimiter creates a rate.Limiter that caps aggregate throughput to
// bytesPerSec. The burst is set to 1 MB to allow natural chunk sizes
// through without unnecessary blocking.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// Throttle blocks after each chunk until the limiter admits the bytes just
// written, which paces the whole transfer to the limiter's rate.
type Throttle struct {
	ctx     context.Context
	limiter *rate.Limiter
	bytes   delta
}

// NewThrottle creates a Throttle. Waiting stops early when ctx is done.
func NewThrottle(ctx context.Context, limiter *rate.Limiter) *Throttle {
	return &Throttle{ctx: ctx, limiter: limiter}
}

func (t *Throttle) Progress(ev engine.ProgressEvent) error {
	if ev.Status != engine.StatusInProgress && ev.Status != engine.StatusSuccess {
		return nil
	}
	n := t.bytes.next(ev)
	burst := int64(t.limiter.Burst())
	if burst <= 0 {
		return nil
	}
	for n > 0 {
		step := min(n, burst)
		if err := t.limiter.WaitN(t.ctx, int(step)); err != nil {
			return fmt.Errorf("%w: %w", engine.ErrCancelled, err)
		}
		n -= step
	}
	return nil
}
