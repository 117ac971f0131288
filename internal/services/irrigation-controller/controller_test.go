package irrigation_controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestController() *Controller {
	return NewController(WithLocation(time.UTC), WithFlowRate(10))
}

func ticks(c *Controller, from time.Time, n int) (autoStops int) {
	for i := 1; i <= n; i++ {
		if c.Tick(from.Add(time.Duration(i) * time.Minute)) {
			autoStops++
		}
	}
	return autoStops
}

func TestActivateSetsCommand(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 15, "")

	s := c.Status()
	assert.True(t, s.IsActive)
	assert.Equal(t, entities.IrrigationActive, s.State())
	assert.Equal(t, "main", s.CurrentZone)
	require.NotNil(t, s.StartTime)
	assert.Equal(t, t0, *s.StartTime)
	assert.Equal(t, 15, *s.DurationMinutes)
	assert.Equal(t, 15, *s.RemainingMinutes)
}

func TestFiveTicksAutoStop(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 5, "north")

	assert.Equal(t, 1, ticks(c, t0, 5))

	s := c.Status()
	assert.False(t, s.IsActive)
	assert.Nil(t, s.RemainingMinutes)
	assert.Nil(t, s.StartTime)
	assert.Nil(t, s.DurationMinutes)
	require.NotNil(t, s.LastActivation)
	assert.Equal(t, t0, *s.LastActivation)
}

func TestFourTicksLeaveOneMinute(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 5, "")

	assert.Zero(t, ticks(c, t0, 4))

	s := c.Status()
	assert.True(t, s.IsActive)
	require.NotNil(t, s.RemainingMinutes)
	assert.Equal(t, 1, *s.RemainingMinutes)
}

func TestReactivateOverwrites(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 10, "a")
	ticks(c, t0, 3)
	c.Activate(t0.Add(3*time.Minute), 20, "b")

	s := c.Status()
	assert.Equal(t, 20, *s.RemainingMinutes)
	assert.Equal(t, 20, *s.DurationMinutes)
	assert.Equal(t, "b", s.CurrentZone)
}

func TestTickWhileInactiveIsNoop(t *testing.T) {
	c := newTestController()
	before := c.Status()
	assert.False(t, c.Tick(t0))
	assert.Equal(t, before, c.Status())
}

func TestDeactivateRecordsLastActivation(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 30, "")
	c.Deactivate(t0.Add(2 * time.Minute))

	s := c.Status()
	assert.False(t, s.IsActive)
	assert.Equal(t, t0, *s.LastActivation)

	// seconda deactivate: nessun effetto
	c.Deactivate(t0.Add(3 * time.Minute))
	assert.Equal(t, s, c.Status())
}

func TestRuntimeAndWaterUsage(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 3, "")
	ticks(c, t0, 3)

	s := c.Status()
	assert.Equal(t, 3, s.TotalRuntimeToday)
	require.NotNil(t, s.WaterUsageLiters)
	assert.Equal(t, 30.0, *s.WaterUsageLiters)
}

func TestRuntimeResetsAtLocalMidnight(t *testing.T) {
	c := newTestController()
	late := time.Date(2024, 6, 1, 23, 58, 0, 0, time.UTC)
	c.Activate(late, 5, "")
	ticks(c, late, 1) // 23:59

	assert.Equal(t, 1, c.Status().TotalRuntimeToday)

	ticks(c, late.Add(time.Minute), 1) // 00:00 giorno nuovo
	s := c.Status()
	assert.Equal(t, 1, s.TotalRuntimeToday)
	assert.Equal(t, 10.0, *s.WaterUsageLiters)
	assert.Equal(t, 3, *s.RemainingMinutes)
}

func TestStatusIsACopy(t *testing.T) {
	c := newTestController()
	c.Activate(t0, 5, "")
	s := c.Status()
	*s.RemainingMinutes = 99
	assert.Equal(t, 5, *c.Status().RemainingMinutes)
}
