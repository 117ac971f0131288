package entities

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxIrrigationMinutes e' il limite superiore accettato al boundary (API/config).
	MaxIrrigationMinutes = 180
	DefaultZone          = "main"
)

// ErrInvalidCommand wraps every boundary validation failure of IrrigationCommand.
var ErrInvalidCommand = errors.New("invalid irrigation command")

// IrrigationState is the duty-cycle state of the actuator.
type IrrigationState string

const (
	IrrigationInactive IrrigationState = "INACTIVE"
	IrrigationActive   IrrigationState = "ACTIVE"
)

// IrrigationStatus e' lo snapshot dello stato dell'attuatore.
type IrrigationStatus struct {
	IsActive          bool       `json:"is_active"`
	CurrentZone       string     `json:"current_zone,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	DurationMinutes   *int       `json:"duration_minutes,omitempty"`
	RemainingMinutes  *int       `json:"remaining_minutes,omitempty"`
	LastActivation    *time.Time `json:"last_activation,omitempty"`
	TotalRuntimeToday int        `json:"total_runtime_today"` // minuti
	WaterUsageLiters  *float64   `json:"water_usage_liters,omitempty"`
}

// State maps IsActive onto the state machine name.
func (s IrrigationStatus) State() IrrigationState {
	if s.IsActive {
		return IrrigationActive
	}
	return IrrigationInactive
}

// Clone copies the pointed-to values so callers never alias controller state.
func (s IrrigationStatus) Clone() IrrigationStatus {
	out := s
	out.StartTime = cloneTime(s.StartTime)
	out.LastActivation = cloneTime(s.LastActivation)
	out.DurationMinutes = cloneInt(s.DurationMinutes)
	out.RemainingMinutes = cloneInt(s.RemainingMinutes)
	if s.WaterUsageLiters != nil {
		v := *s.WaterUsageLiters
		out.WaterUsageLiters = &v
	}
	return out
}

// IrrigationCommand is the activate/deactivate request coming from the API or MQTT.
type IrrigationCommand struct {
	Activate        bool   `json:"activate"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ZoneID          string `json:"zone_id,omitempty"`
	// CommandID opzionale: se presente, un comando con lo stesso id viene applicato una volta sola.
	CommandID       string `json:"command_id,omitempty"`
}

// Validate enforces the duration bounds; the controller itself accepts anything.
func (c IrrigationCommand) Validate() error {
	if !c.Activate {
		return nil
	}
	if c.DurationMinutes < 1 || c.DurationMinutes > MaxIrrigationMinutes {
		return fmt.Errorf("%w: duration_minutes must be in [1,%d], got %d",
			ErrInvalidCommand, MaxIrrigationMinutes, c.DurationMinutes)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
