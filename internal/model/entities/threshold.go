package entities

import "fmt"

// Threshold holds the safe [Min,Max] band for one channel.
type Threshold struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ThresholdSet maps channels to their safety band. It is replaced wholesale,
// never patched in place.
type ThresholdSet map[ChannelName]Threshold

// DefaultThresholds returns the factory bands. Channels without a band
// (conductivity, pressure) are never evaluated.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		SoilMoisture:    {Min: 30, Max: 70},
		SoilTemperature: {Min: 15, Max: 35},
		SoilPH:          {Min: 6.0, Max: 7.5},
		AirTemperature:  {Min: 10, Max: 40},
		Humidity:        {Min: 40, Max: 80},
		Nitrogen:        {Min: 100, Max: 150},
		Phosphorus:      {Min: 30, Max: 60},
		Potassium:       {Min: 150, Max: 200},
	}
}

// Validate rejects unknown channels and inverted bands.
func (s ThresholdSet) Validate() error {
	for name, th := range s {
		if _, ok := LookupChannel(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
		}
		if th.Min > th.Max {
			return fmt.Errorf("threshold %s: min %.2f > max %.2f", name, th.Min, th.Max)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (s ThresholdSet) Clone() ThresholdSet {
	out := make(ThresholdSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
