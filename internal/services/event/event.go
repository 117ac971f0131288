package event

import (
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// Tipi di evento emessi dall'engine.
const (
	TypeReading    = "telemetry.reading"
	TypeAlert      = "alert.raised"
	TypeIrrigation = "irrigation.state_change"
)

const sourceEngine = "agri-engine"

// CommonEvent e' la forma normalizzata che ogni sink sa spedire.
type CommonEvent struct {
	EventType     string                 `json:"event_type"`
	SourceService string                 `json:"source_service"`
	Zone          string                 `json:"zone,omitempty"`
	Channel       string                 `json:"channel,omitempty"`
	Severity      string                 `json:"severity"` // info|warning|error
	Fields        map[string]interface{} `json:"fields"`
	Timestamp     time.Time              `json:"timestamp"`
}

// FromReading: un field per canale, NPK incluso.
func FromReading(r messages.Reading) CommonEvent {
	fields := make(map[string]interface{}, 10)
	for k, v := range r.Flatten() {
		fields[k] = v
	}
	return CommonEvent{
		EventType:     TypeReading,
		SourceService: sourceEngine,
		Severity:      "info",
		Fields:        fields,
		Timestamp:     r.Timestamp,
	}
}

// FromAlert mappa la severity dell'alert (moderate → warning, high → error).
func FromAlert(a messages.Alert) CommonEvent {
	sev := "warning"
	if a.Severity == messages.SeverityHigh {
		sev = "error"
	}
	return CommonEvent{
		EventType:     TypeAlert,
		SourceService: sourceEngine,
		Channel:       string(a.Channel),
		Severity:      sev,
		Fields: map[string]interface{}{
			"alert_id":      a.ID,
			"type":          a.Type,
			"direction":     string(a.Direction),
			"value":         a.Value,
			"threshold_min": a.ThresholdMin,
			"threshold_max": a.ThresholdMax,
			"message":       a.Message,
		},
		Timestamp: a.CreatedAt,
	}
}

func FromIrrigation(s messages.IrrigationStateChanged) CommonEvent {
	return CommonEvent{
		EventType:     TypeIrrigation,
		SourceService: sourceEngine,
		Zone:          s.Zone,
		Severity:      "info",
		Fields: map[string]interface{}{
			"new_state":        string(s.NewState),
			"duration_minutes": int64(s.DurationMinutes),
			"reason":           s.Reason,
		},
		Timestamp: s.Timestamp,
	}
}
