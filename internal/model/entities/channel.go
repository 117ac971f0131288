package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ChannelName identifies one numeric telemetry quantity.
type ChannelName string

const (
	SoilMoisture        ChannelName = "soil_moisture"
	SoilTemperature     ChannelName = "soil_temperature"
	SoilPH              ChannelName = "soil_ph"
	SoilConductivity    ChannelName = "soil_conductivity"
	AirTemperature      ChannelName = "air_temperature"
	Humidity            ChannelName = "humidity"
	AtmosphericPressure ChannelName = "atmospheric_pressure"
	Nitrogen            ChannelName = "nitrogen"
	Phosphorus          ChannelName = "phosphorus"
	Potassium           ChannelName = "potassium"
)

// ErrUnknownChannel is returned for channel names outside the catalog.
var ErrUnknownChannel = errors.New("unknown channel")

// ChannelSpec holds the hard physical range and display precision of a channel.
type ChannelSpec struct {
	Name     ChannelName `json:"name"`
	Unit     string      `json:"unit"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
	Decimals int         `json:"decimals"`
	NPK      bool        `json:"npk"` // part of the nested N/P/K triple
}

// Clamp porta v dentro [Min,Max].
func (c ChannelSpec) Clamp(v float64) float64 {
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	return v
}

// Round arrotonda alla precisione dichiarata del canale.
func (c ChannelSpec) Round(v float64) float64 {
	p := math.Pow(10, float64(c.Decimals))
	return math.Round(v*p) / p
}

// Contains reports whether v lies inside the clamp range.
func (c ChannelSpec) Contains(v float64) bool {
	return v >= c.Min && v <= c.Max
}

// Label returns the human form of the channel name ("Soil Moisture").
func (c ChannelName) Label() string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// catalog order is also the evaluation and storage column order.
var catalog = []ChannelSpec{
	{Name: SoilMoisture, Unit: "%", Min: 10, Max: 90, Decimals: 1},
	{Name: SoilTemperature, Unit: "°C", Min: 5, Max: 45, Decimals: 1},
	{Name: SoilPH, Unit: "pH", Min: 4.0, Max: 9.0, Decimals: 2},
	{Name: SoilConductivity, Unit: "µS/cm", Min: 100, Max: 3000, Decimals: 0},
	{Name: AirTemperature, Unit: "°C", Min: -10, Max: 50, Decimals: 1},
	{Name: Humidity, Unit: "%", Min: 20, Max: 95, Decimals: 1},
	{Name: AtmosphericPressure, Unit: "hPa", Min: 980, Max: 1040, Decimals: 1},
	{Name: Nitrogen, Unit: "ppm", Min: 50, Max: 250, Decimals: 1, NPK: true},
	{Name: Phosphorus, Unit: "ppm", Min: 20, Max: 80, Decimals: 1, NPK: true},
	{Name: Potassium, Unit: "ppm", Min: 100, Max: 300, Decimals: 1, NPK: true},
}

// Channels returns a copy of the channel catalog in canonical order.
func Channels() []ChannelSpec {
	out := make([]ChannelSpec, len(catalog))
	copy(out, catalog)
	return out
}

// LookupChannel returns the ChannelSpec registered under name.
func LookupChannel(name ChannelName) (ChannelSpec, bool) {
	for _, c := range catalog {
		if c.Name == name {
			return c, true
		}
	}
	return ChannelSpec{}, false
}

// ParseChannel validates a free-form channel name (query params, payloads).
func ParseChannel(s string) (ChannelName, error) {
	name := ChannelName(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := LookupChannel(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return name, nil
}
