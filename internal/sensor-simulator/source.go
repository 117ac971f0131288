package sensor_simulator

import (
	"errors"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// ErrNoReading e' restituito da una Source che non ha nulla di nuovo per il tick.
var ErrNoReading = errors.New("no new reading available")

// Source produce la Reading corrente ad ogni tick dello scheduler.
type Source interface {
	Next(now time.Time) (messages.Reading, error)
}
