package alerting

import (
	"fmt"
	"strconv"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// moltiplicatori oltre i quali la violazione diventa HIGH
const (
	lowEscalation  = 0.8
	highEscalation = 1.2
)

// Evaluate confronta ogni canale con soglia dichiarata e restituisce un alert
// per ogni violazione, in ordine di catalogo. Funzione pura: niente ID,
// CreatedAt = timestamp della reading.
func Evaluate(r messages.Reading, thresholds entities.ThresholdSet) []messages.Alert {
	var out []messages.Alert
	for _, spec := range entities.Channels() {
		th, ok := thresholds[spec.Name]
		if !ok {
			continue
		}
		v, ok := r.Value(spec.Name)
		if !ok {
			continue
		}
		switch {
		case v < th.Min:
			sev := messages.SeverityModerate
			if v < th.Min*lowEscalation {
				sev = messages.SeverityHigh
			}
			out = append(out, newAlert(spec, messages.DirectionLow, sev, v, th, r))
		case v > th.Max:
			sev := messages.SeverityModerate
			if v > th.Max*highEscalation {
				sev = messages.SeverityHigh
			}
			out = append(out, newAlert(spec, messages.DirectionHigh, sev, v, th, r))
		}
	}
	return out
}

func newAlert(spec entities.ChannelSpec, dir messages.Direction, sev messages.Severity,
	v float64, th entities.Threshold, r messages.Reading) messages.Alert {
	return messages.Alert{
		Type:         fmt.Sprintf("%s_%s", spec.Name, dir),
		Channel:      spec.Name,
		Direction:    dir,
		Severity:     sev,
		Title:        Title(spec.Name, dir),
		Message:      Message(spec, dir, v, th),
		Value:        v,
		ThresholdMin: th.Min,
		ThresholdMax: th.Max,
		CreatedAt:    r.Timestamp,
	}
}

// Title: "Low Soil Moisture" / "High Air Temperature".
func Title(ch entities.ChannelName, dir messages.Direction) string {
	if dir == messages.DirectionLow {
		return "Low " + ch.Label()
	}
	return "High " + ch.Label()
}

// Message: "Soil Moisture is below minimum threshold: 25 < 30".
func Message(spec entities.ChannelSpec, dir messages.Direction, v float64, th entities.Threshold) string {
	if dir == messages.DirectionLow {
		return fmt.Sprintf("%s is below minimum threshold: %s < %s",
			spec.Name.Label(), format(spec, v), format(spec, th.Min))
	}
	return fmt.Sprintf("%s is above maximum threshold: %s > %s",
		spec.Name.Label(), format(spec, v), format(spec, th.Max))
}

// format usa la precisione del canale senza zeri finali (25, 6.45, 850).
func format(spec entities.ChannelSpec, v float64) string {
	return strconv.FormatFloat(spec.Round(v), 'f', -1, 64)
}
