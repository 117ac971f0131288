package messages

import (
	"encoding/json"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

// NPK is the nested nutrient triple (ppm).
type NPK struct {
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
}

// Reading is one timestamped snapshot of every channel. It is produced once
// per tick and superseded, never mutated, by the next one.
type Reading struct {
	Timestamp time.Time
	Values    map[entities.ChannelName]float64 // canali non-NPK
	NPK       NPK
}

// Value resolves any catalog channel, N/P/K included.
func (r Reading) Value(ch entities.ChannelName) (float64, bool) {
	switch ch {
	case entities.Nitrogen:
		return r.NPK.Nitrogen, true
	case entities.Phosphorus:
		return r.NPK.Phosphorus, true
	case entities.Potassium:
		return r.NPK.Potassium, true
	}
	v, ok := r.Values[ch]
	return v, ok
}

// Set writes ch, routing N/P/K into the triple.
func (r *Reading) Set(ch entities.ChannelName, v float64) {
	switch ch {
	case entities.Nitrogen:
		r.NPK.Nitrogen = v
	case entities.Phosphorus:
		r.NPK.Phosphorus = v
	case entities.Potassium:
		r.NPK.Potassium = v
	default:
		if r.Values == nil {
			r.Values = make(map[entities.ChannelName]float64)
		}
		r.Values[ch] = v
	}
}

// Flatten returns every channel value keyed by name (storage row shape).
func (r Reading) Flatten() map[string]float64 {
	out := make(map[string]float64, len(r.Values)+3)
	for _, c := range entities.Channels() {
		if v, ok := r.Value(c.Name); ok {
			out[string(c.Name)] = v
		}
	}
	return out
}

// IsZero reports whether r was never produced.
func (r Reading) IsZero() bool { return r.Timestamp.IsZero() }

// Clone deep-copies the value map.
func (r Reading) Clone() Reading {
	out := r
	if r.Values != nil {
		out.Values = make(map[entities.ChannelName]float64, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}

type npkWire struct {
	NPK
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON emits the flat wire form: one key per channel plus "npk" and "timestamp".
func (r Reading) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Values)+2)
	for k, v := range r.Values {
		m[string(k)] = v
	}
	m["npk"] = npkWire{NPK: r.NPK, Timestamp: r.Timestamp}
	m["timestamp"] = r.Timestamp
	return json.Marshal(m)
}

// UnmarshalJSON accepts the flat wire form; unknown keys are ignored.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Reading{Values: make(map[entities.ChannelName]float64)}
	if ts, ok := raw["timestamp"]; ok {
		if err := json.Unmarshal(ts, &out.Timestamp); err != nil {
			return err
		}
	}
	if n, ok := raw["npk"]; ok {
		var w npkWire
		if err := json.Unmarshal(n, &w); err != nil {
			return err
		}
		out.NPK = w.NPK
	}
	for _, c := range entities.Channels() {
		if c.NPK {
			continue
		}
		v, ok := raw[string(c.Name)]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		out.Values[c.Name] = f
	}
	*r = out
	return nil
}
