// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// Backoff is the mirror's rate-limit retry schedule. Each delay is
// min(Max, previous*Factor + Increment), starting at Initial.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	Increment   time.Duration
	MaxAttempts int
}

// BackoffFromConfig builds the schedule from the mirror settings.
func BackoffFromConfig(cfg types.MirrorConfig) Backoff {
	return Backoff{
		Initial:     cfg.MinDelay,
		Max:         cfg.MaxDelay,
		Factor:      cfg.BackoffFactor,
		Increment:   cfg.BackoffIncrement,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Next returns the delay following prev.
func (b Backoff) Next(prev time.Duration) time.Duration {
	d := time.Duration(float64(prev)*b.Factor) + b.Increment
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Delays returns MaxAttempts delays: the wait after the first, second, ...
// rate-limit signal. With the defaults: 3.1s, 7.2s, 15.4s, 31.8s, 60s.
func (b Backoff) Delays() []time.Duration {
	if b.MaxAttempts <= 0 {
		return nil
	}
	delays := make([]time.Duration, b.MaxAttempts)
	d := b.Initial
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	for i := range delays {
		delays[i] = d
		d = b.Next(d)
	}
	return delays
}

// Pacer enforces a minimum spacing between mirror attempts. It holds the
// time the last attempt completed and is safe for concurrent use.
type Pacer struct {
	MinDelay time.Duration

	// Now and Sleep default to the wall clock; tests replace them.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// NewPacer returns a pacer with the wall clock.
func NewPacer(minDelay time.Duration) *Pacer {
	return &Pacer{MinDelay: minDelay, Now: time.Now, Sleep: sleepContext}
}

// Wait blocks until MinDelay has passed since the last Done call. The lock
// is held while sleeping so attempts stay serialized.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.IsZero() {
		return ctx.Err()
	}
	elapsed := p.Now().Sub(p.last)
	if elapsed >= p.MinDelay {
		return ctx.Err()
	}
	return p.Sleep(ctx, p.MinDelay-elapsed)
}

// Done records that an attempt just completed.
func (p *Pacer) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = p.Now()
}

// Last returns when the last attempt completed.
func (p *Pacer) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
