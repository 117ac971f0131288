package sensor_simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// ====== Tunables ======
const (
	// driftStd: passo del random walk applicato ad ogni tick.
	driftStd = 0.01
	// driftLimit: il drift resta in [-driftLimit, +driftLimit].
	driftLimit = 5.0

	// ampiezza del ciclo giornaliero di temperatura (°C) e dell'evaporazione (%)
	tempAmplitude     = 5.0
	moistureAmplitude = 10.0
	// picco di temperatura a meta' giornata: sin((p-0.25)*2π)
	tempPhase = 0.25

	// soilGridsURL: fetch singola all'avvio; NON chiamare ad ogni tick.
	soilGridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query?lat=%f&lon=%f&property=wv0010&depth=0-5cm&value=mean"
)

// diurnalFunc maps day progress p in [0,1) to an additive offset.
type diurnalFunc func(p float64) float64

func airTemp(p float64) float64  { return math.Sin((p-tempPhase)*2*math.Pi) * tempAmplitude }
func soilTemp(p float64) float64 { return airTemp(p) * 0.3 }
func humidity(p float64) float64 { return -airTemp(p) * 0.8 }

// l'evaporazione abbassa l'umidita' del suolo nelle ore centrali
func evaporation(p float64) float64 { return -math.Abs(math.Sin(p*math.Pi)) * moistureAmplitude }

// channelState e' lo stato interno di un canale, persistente tra i tick.
type channelState struct {
	spec     entities.ChannelSpec
	baseline float64
	noiseStd float64
	diurnal  diurnalFunc // nil = nessun termine giornaliero (pH, EC, pressione, NPK)
	drift    float64
}

type profile struct {
	baseline float64
	noiseStd float64
	diurnal  diurnalFunc
}

var profiles = map[entities.ChannelName]profile{
	entities.SoilMoisture:        {baseline: 50.0, noiseStd: 2.0, diurnal: evaporation},
	entities.SoilTemperature:     {baseline: 24.0, noiseStd: 0.5, diurnal: soilTemp},
	entities.SoilPH:              {baseline: 6.8, noiseStd: 0.1},
	entities.SoilConductivity:    {baseline: 850.0, noiseStd: 20},
	entities.AirTemperature:      {baseline: 28.0, noiseStd: 1.0, diurnal: airTemp},
	entities.Humidity:            {baseline: 65.0, noiseStd: 3.0, diurnal: humidity},
	entities.AtmosphericPressure: {baseline: 1013.2, noiseStd: 2.0},
	entities.Nitrogen:            {baseline: 120.0, noiseStd: 2.0},
	entities.Phosphorus:          {baseline: 45.0, noiseStd: 1.0},
	entities.Potassium:           {baseline: 180.0, noiseStd: 3.0},
}

// DataGenerator produce una Reading sintetica per tick: baseline + ciclo
// giornaliero + rumore gaussiano + drift lento, poi clamp e arrotondamento.
type DataGenerator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	channels   []*channelState
	seeded     bool
	httpClient *http.Client
}

// GeneratorOption customizes a DataGenerator.
type GeneratorOption func(*DataGenerator)

// WithRand injects the random source (tests use a fixed seed).
func WithRand(r *rand.Rand) GeneratorOption {
	return func(g *DataGenerator) { g.rng = r }
}

// WithHTTPClient overrides the client used by SeedFromSoilGrids.
func WithHTTPClient(c *http.Client) GeneratorOption {
	return func(g *DataGenerator) { g.httpClient = c }
}

// NewDataGenerator crea un generatore con tutti i canali del catalogo a drift zero.
func NewDataGenerator(opts ...GeneratorOption) *DataGenerator {
	g := &DataGenerator{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
	for _, spec := range entities.Channels() {
		p := profiles[spec.Name]
		g.channels = append(g.channels, &channelState{
			spec:     spec,
			baseline: p.baseline,
			noiseStd: p.noiseStd,
			diurnal:  p.diurnal,
		})
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next implements Source; generation cannot fail.
func (g *DataGenerator) Next(now time.Time) (messages.Reading, error) {
	return g.Generate(now), nil
}

// Generate produce la Reading per now e avanza il drift di ogni canale.
func (g *DataGenerator) Generate(now time.Time) messages.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	dayProgress := float64(now.Hour()) / 24.0

	r := messages.Reading{
		Timestamp: now,
		Values:    make(map[entities.ChannelName]float64, len(g.channels)),
	}
	for _, ch := range g.channels {
		v := ch.baseline + ch.drift + g.rng.NormFloat64()*ch.noiseStd
		if ch.diurnal != nil {
			v += ch.diurnal(dayProgress)
		}
		r.Set(ch.spec.Name, ch.spec.Round(ch.spec.Clamp(v)))
	}

	for _, ch := range g.channels {
		ch.drift += g.rng.NormFloat64() * driftStd
		ch.drift = math.Max(-driftLimit, math.Min(driftLimit, ch.drift))
	}
	return r
}

// Drift returns the current drift offset of a channel (0 for unknown channels).
func (g *DataGenerator) Drift(name entities.ChannelName) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ch := g.channel(name); ch != nil {
		return ch.drift
	}
	return 0
}

func (g *DataGenerator) channel(name entities.ChannelName) *channelState {
	for _, ch := range g.channels {
		if ch.spec.Name == name {
			return ch
		}
	}
	return nil
}

// SeedFromSoilGrids --> singola fetch a SoilGrids all'avvio per il baseline
// dell'umidita' del suolo. Se fallisce resta il baseline di default.
func (g *DataGenerator) SeedFromSoilGrids(ctx context.Context, lat, lon float64) error {
	g.mu.Lock()
	if g.seeded {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	log := logger.WithComponent("generator")

	var wv float64
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		v, err := g.fetchSoilMoisture(ctx, lat, lon)
		if err != nil {
			log.Warn().Err(err).Msg("soilgrids fetch failed")
			return err
		}
		wv = v
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("soilgrids seed: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ch := g.channel(entities.SoilMoisture); ch != nil {
		ch.baseline = ch.spec.Clamp(wv * 100)
		log.Info().Float64("baseline", ch.baseline).Float64("lat", lat).Float64("lon", lon).
			Msg("soil moisture baseline seeded")
	}
	g.seeded = true
	return nil
}

// ===== Helpers =====

func (g *DataGenerator) fetchSoilMoisture(ctx context.Context, lat, lon float64) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(soilGridsURL, lat, lon), nil)
	if err != nil {
		return -1, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", "agri-telemetry-simulator/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return -1, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return -1, fmt.Errorf("soilgrids HTTP %d", resp.StatusCode)
	default:
		// non-retryable
		return -1, backoff.Permanent(fmt.Errorf("soilgrids HTTP %d: %s", resp.StatusCode, string(body)))
	}

	var parsed soilGridsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return -1, backoff.Permanent(err)
	}
	m, ok := parsed.firstValue()
	if !ok {
		return -1, backoff.Permanent(errors.New("soilgrids: moisture field not found"))
	}
	return normalizeWV(m), nil
}

type soilGridsResponse struct {
	Properties struct {
		Layers []struct {
			Name   string `json:"name"`
			Depths []struct {
				Values map[string]*float64 `json:"values"`
			} `json:"depths"`
		} `json:"layers"`
	} `json:"properties"`
}

// firstValue prende il primo valore numerico disponibile del primo layer/profondita'.
func (s soilGridsResponse) firstValue() (float64, bool) {
	if len(s.Properties.Layers) == 0 || len(s.Properties.Layers[0].Depths) == 0 {
		return 0, false
	}
	vals := s.Properties.Layers[0].Depths[0].Values
	for _, k := range []string{"Q0.5", "mean", "Q0.95", "Q0.05"} {
		if v, ok := vals[k]; ok && v != nil {
			return *v, true
		}
	}
	return 0, false
}

// normalizeWV porta i valori SoilGrids "wv****" in [0..1].
// Molti layer sono interi in millesimi di m3/m3 (es. 420 => 0.420).
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x = x / 1000.0
	}
	return math.Max(0, math.Min(1, x))
}
