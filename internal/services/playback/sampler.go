package playback

import (
	"context"
	"time"
)

// DefaultSampleInterval matches a 60Hz display refresh.
const DefaultSampleInterval = time.Second / 60

// Sampler runs a tick function on a fixed interval until stopped. It is owned
// by a Navigator and only touched under the Navigator's lock, so it carries no
// lock of its own.
type Sampler struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSampler creates a stopped sampler. A non-positive interval means
// DefaultSampleInterval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{interval: interval}
}

// Running reports whether a sampling goroutine is active.
func (s *Sampler) Running() bool {
	return s.cancel != nil
}

// Start launches the sampling goroutine. Starting a running sampler is a
// no-op and returns false. tick receives the sampler's context and must check
// it after acquiring any lock, since Stop does not wait for an in-flight tick.
func (s *Sampler) Start(parent context.Context, tick func(ctx context.Context)) bool {
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				tick(ctx)
			}
		}
	}()
	return true
}

// Stop cancels the sampling goroutine without waiting for it. The returned
// channel closes once the goroutine has exited. Stop is idempotent.
func (s *Sampler) Stop() <-chan struct{} {
	if s.cancel == nil {
		if s.done != nil {
			return s.done
		}
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	s.cancel()
	s.cancel = nil
	return s.done
}
