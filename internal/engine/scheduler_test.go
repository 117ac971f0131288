package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		ReadingInterval:    5 * time.Millisecond,
		SweepInterval:      5 * time.Millisecond,
		AlertRetention:     time.Hour,
		DeepSweepInterval:  5 * time.Millisecond,
		DeepRetention:      2 * time.Hour,
		IrrigationInterval: 5 * time.Millisecond,
		BackoffMin:         5 * time.Millisecond,
		BackoffMax:         10 * time.Millisecond,
	}
}

func TestSchedulerRunsLoopsAndStops(t *testing.T) {
	e := New(healthySource())
	_, err := e.ExecuteIrrigation(entities.IrrigationCommand{Activate: true, DurationMinutes: 3})
	require.NoError(t, err)

	s := NewScheduler(e, fastConfig())
	s.Start(context.Background())
	s.Start(context.Background()) // no-op
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool { return e.Status().ReadingsCollected >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !e.IrrigationStatus().IsActive }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.Running())

	n := e.Status().ReadingsCollected
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, e.Status().ReadingsCollected)
}

// panicSource va in panic alle prime due chiamate.
type panicSource struct {
	calls atomic.Int32
	inner *staticSource
}

func (p *panicSource) Next(now time.Time) (messages.Reading, error) {
	if p.calls.Add(1) <= 2 {
		panic("sensor bus exploded")
	}
	return p.inner.Next(now)
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	src := &panicSource{inner: healthySource()}
	e := New(src)
	s := NewScheduler(e, fastConfig())
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return e.Status().ReadingsCollected >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(3))
}

func TestSchedulerStopsWithParentContext(t *testing.T) {
	e := New(healthySource())
	s := NewScheduler(e, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loops did not exit after context cancel")
	}
	s.Stop()
}

func TestNewSchedulerFillsDefaults(t *testing.T) {
	s := NewScheduler(New(healthySource()), SchedulerConfig{})
	assert.Equal(t, DefaultSchedulerConfig(), s.cfg)
}

func TestNewSchedulerBackoffBounds(t *testing.T) {
	s := NewScheduler(New(healthySource()), SchedulerConfig{BackoffMin: 2 * time.Second})
	assert.Equal(t, 2*time.Second, s.cfg.BackoffMin)
	assert.Equal(t, 30*time.Second, s.cfg.BackoffMax, "unset max keeps the default")

	s = NewScheduler(New(healthySource()), SchedulerConfig{BackoffMin: time.Minute, BackoffMax: 10 * time.Second})
	assert.Equal(t, time.Minute, s.cfg.BackoffMax, "max never below min")
}

func TestRunSafeConvertsPanic(t *testing.T) {
	err := runSafe(context.Background(), func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
