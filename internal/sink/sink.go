// Package sink provides engine.ProgressSink implementations that connect a
// transfer to the rest of the program: the event stream, statistics,
// bandwidth limiting, and cancellation.
package sink

import (
	"context"
	"fmt"

	"github.com/bamsammich/shuttle/internal/engine"
)

// Multi calls each sink in order and stops at the first error.
type Multi []engine.ProgressSink

func (m Multi) Progress(ev engine.ProgressEvent) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Progress(ev); err != nil {
			return err
		}
	}
	return nil
}

// Cancel stops the transfer at the next checkpoint once ctx is done.
type Cancel struct {
	ctx context.Context
}

// NewCancel returns a sink bound to ctx.
func NewCancel(ctx context.Context) *Cancel {
	return &Cancel{ctx: ctx}
}

func (c *Cancel) Progress(engine.ProgressEvent) error {
	select {
	case <-c.ctx.Done():
		return fmt.Errorf("%w: %w", engine.ErrCancelled, context.Cause(c.ctx))
	default:
		return nil
	}
}

// delta tracks per-item byte progress so a sink can turn running totals
// into increments. Items arrive one at a time.
type delta struct {
	path string
	last int64
}

func (d *delta) next(ev engine.ProgressEvent) int64 {
	if ev.Path != d.path {
		d.path = ev.Path
		d.last = 0
	}
	n := ev.Done - d.last
	if n < 0 {
		n = 0
	}
	d.last = ev.Done
	return n
}
