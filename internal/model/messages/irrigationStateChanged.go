package messages

import (
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

// IrrigationStateChanged e' emesso ad ogni transizione della macchina a stati.
type IrrigationStateChanged struct {
	Zone            string                   `json:"zone"`
	NewState        entities.IrrigationState `json:"new_state"`
	DurationMinutes int                      `json:"duration_minutes,omitempty"`
	Reason          string                   `json:"reason"` // "command" | "auto-stop"
	Timestamp       time.Time                `json:"timestamp"`
}
