package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

func alertAt(t time.Time) messages.Alert {
	return messages.Alert{Type: "soil_moisture_low", Channel: entities.SoilMoisture, CreatedAt: t}
}

func TestLedgerAppendAssignsIDsWithoutDedup(t *testing.T) {
	l := NewLedger()
	a := alertAt(ts)
	l.Append(a, a)
	l.Append(a)

	active := l.Active()
	require.Len(t, active, 3)
	assert.NotEmpty(t, active[0].ID)
	assert.NotEqual(t, active[0].ID, active[1].ID)

	withID := alertAt(ts)
	withID.ID = "fixed"
	l.Append(withID)
	assert.Equal(t, "fixed", l.Active()[3].ID)
}

func TestLedgerSweepRetention(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	l := NewLedger()
	l.Append(alertAt(now.Add(-25*time.Hour)), alertAt(now.Add(-23*time.Hour)))

	removed := l.Sweep(now, 24*time.Hour)
	assert.Equal(t, 1, removed)

	active := l.Active()
	require.Len(t, active, 1)
	assert.Equal(t, now.Add(-23*time.Hour), active[0].CreatedAt)
}

func TestLedgerDeepSweep(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	l := NewLedger()
	l.Append(alertAt(now.Add(-8*24*time.Hour)), alertAt(now.Add(-2*24*time.Hour)))

	assert.Equal(t, 1, l.Sweep(now, 7*24*time.Hour))
	assert.Equal(t, 1, l.Len())
}

// Un canale che rientra nella banda non risolve i propri alert: spariscono
// solo per eta'.
func TestLedgerAlertsResolveOnlyByAging(t *testing.T) {
	th := entities.DefaultThresholds()
	l := NewLedger()

	low := inRange()
	low.Set(entities.SoilMoisture, 25)
	l.Append(Evaluate(low, th)...)

	back := inRange()
	back.Timestamp = ts.Add(30 * time.Second)
	l.Append(Evaluate(back, th)...)

	active := l.Active()
	require.Len(t, active, 1)
	assert.False(t, active[0].Resolved)

	l.Sweep(ts.Add(24*time.Hour+time.Minute), 24*time.Hour)
	assert.Empty(t, l.Active())
}

func TestLedgerActiveIsACopy(t *testing.T) {
	l := NewLedger()
	l.Append(alertAt(ts))
	snap := l.Active()
	snap[0].Title = "mutated"
	assert.Empty(t, l.Active()[0].Title)
}

func TestLedgerActiveSkipsResolved(t *testing.T) {
	l := NewLedger()
	done := alertAt(ts)
	done.Resolved = true
	l.Append(done, alertAt(ts))
	assert.Len(t, l.Active(), 1)
	assert.Equal(t, 2, l.Len())
}
