package messages

import (
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

// Direction tells which bound was breached.
type Direction string

const (
	DirectionLow  Direction = "low"
	DirectionHigh Direction = "high"
)

// Severity is the urgency tier of an alert.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Alert e' pubblicato dall'evaluator quando un canale esce dalla sua soglia.
type Alert struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"` // es. "soil_moisture_low"
	Channel      entities.ChannelName `json:"sensor_type"`
	Direction    Direction            `json:"direction"`
	Severity     Severity             `json:"severity"`
	Title        string               `json:"title"`
	Message      string               `json:"message"`
	Value        float64              `json:"sensor_value"`
	ThresholdMin float64              `json:"threshold_min"`
	ThresholdMax float64              `json:"threshold_max"`
	CreatedAt    time.Time            `json:"timestamp"`
	Resolved     bool                 `json:"resolved"`
	ResolvedAt   *time.Time           `json:"resolved_at,omitempty"`
}
