// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-harvester/pkg/types"
)

func defaultBackoff() Backoff {
	return BackoffFromConfig(types.DefaultHarvestConfig().Acquisition.Mirror)
}

func TestBackoff_DefaultSchedule(t *testing.T) {
	got := defaultBackoff().Delays()
	want := []time.Duration{
		3100 * time.Millisecond,
		7200 * time.Millisecond,
		15400 * time.Millisecond,
		31800 * time.Millisecond,
		60 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := defaultBackoff()
	b.MaxAttempts = 20
	for _, d := range b.Delays() {
		assert.LessOrEqual(t, d, 60*time.Second)
	}
	b.Initial = 2 * time.Minute
	assert.Equal(t, 60*time.Second, b.Delays()[0])
}

func TestBackoff_NoAttempts(t *testing.T) {
	assert.Nil(t, Backoff{}.Delays())
}

// fakeClock drives a Pacer without real sleeping.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func fakePacer(minDelay time.Duration) (*Pacer, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return &Pacer{MinDelay: minDelay, Now: clock.Now, Sleep: clock.Sleep}, clock
}

func TestPacer_SpacesAttempts(t *testing.T) {
	p, clock := fakePacer(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	p.Done()
	assert.Empty(t, clock.Slept(), "first attempt never waits")

	clock.Advance(time.Second)
	require.NoError(t, p.Wait(ctx))
	p.Done()
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Slept())

	clock.Advance(5 * time.Second)
	require.NoError(t, p.Wait(ctx))
	assert.Len(t, clock.Slept(), 1, "enough time has passed")
}

func TestPacer_CanceledContext(t *testing.T) {
	p := NewPacer(time.Hour)
	p.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacer_LastRecordsCompletion(t *testing.T) {
	p, clock := fakePacer(time.Second)
	assert.True(t, p.Last().IsZero())
	p.Done()
	assert.Equal(t, clock.Now(), p.Last())
}
