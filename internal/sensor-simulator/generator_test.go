package sensor_simulator

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

func TestGenerateStaysInsideChannelRanges(t *testing.T) {
	g := NewDataGenerator(WithRand(rand.New(rand.NewSource(42))))
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2000; i++ {
		r := g.Generate(start.Add(time.Duration(i) * 30 * time.Minute))
		for _, spec := range entities.Channels() {
			v, ok := r.Value(spec.Name)
			require.True(t, ok, spec.Name)
			assert.True(t, spec.Contains(v), "%s=%v outside [%v,%v]", spec.Name, v, spec.Min, spec.Max)
			assert.Equal(t, spec.Round(v), v, "%s not rounded to %d decimals", spec.Name, spec.Decimals)
		}
	}
}

func TestGenerateRoutesNPKIntoTriple(t *testing.T) {
	g := NewDataGenerator(WithRand(rand.New(rand.NewSource(1))))
	r := g.Generate(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	_, inMap := r.Values[entities.Nitrogen]
	assert.False(t, inMap)
	assert.NotZero(t, r.NPK.Nitrogen)
	assert.NotZero(t, r.NPK.Phosphorus)
	assert.NotZero(t, r.NPK.Potassium)
	assert.Len(t, r.Values, 7)
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a := NewDataGenerator(WithRand(rand.New(rand.NewSource(7))))
	b := NewDataGenerator(WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate(now), b.Generate(now))
	}
}

func TestDriftIsBounded(t *testing.T) {
	g := NewDataGenerator(WithRand(rand.New(rand.NewSource(3))))
	for _, ch := range g.channels {
		ch.drift = driftLimit
	}
	now := time.Now()
	for i := 0; i < 500; i++ {
		g.Generate(now)
		for _, spec := range entities.Channels() {
			d := g.Drift(spec.Name)
			assert.LessOrEqual(t, d, driftLimit)
			assert.GreaterOrEqual(t, d, -driftLimit)
		}
	}
}

func TestDiurnalTerms(t *testing.T) {
	// picco a mezzogiorno, minimo a mezzanotte
	assert.InDelta(t, 5.0, airTemp(0.5), 1e-9)
	assert.InDelta(t, -5.0, airTemp(0.0), 1e-9)
	assert.InDelta(t, 1.5, soilTemp(0.5), 1e-9)
	assert.InDelta(t, -4.0, humidity(0.5), 1e-9)
	assert.InDelta(t, -10.0, evaporation(0.5), 1e-9)
	assert.InDelta(t, 0.0, evaporation(0.0), 1e-9)
}

type stubTransport struct {
	status int
	body   string
	calls  int
}

func (s *stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	s.calls++
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
	}, nil
}

func TestSeedFromSoilGridsSetsMoistureBaseline(t *testing.T) {
	rt := &stubTransport{status: http.StatusOK, body: `{"properties":{"layers":[{"name":"wv0010","depths":[{"values":{"mean":420}}]}]}}`}
	g := NewDataGenerator(WithHTTPClient(&http.Client{Transport: rt}))

	require.NoError(t, g.SeedFromSoilGrids(context.Background(), 41.5, 12.4))
	assert.InDelta(t, 42.0, g.channel(entities.SoilMoisture).baseline, 1e-9)

	// seconda chiamata: nessuna fetch
	require.NoError(t, g.SeedFromSoilGrids(context.Background(), 41.5, 12.4))
	assert.Equal(t, 1, rt.calls)
}

func TestSeedFromSoilGridsKeepsDefaultOnClientError(t *testing.T) {
	rt := &stubTransport{status: http.StatusBadRequest, body: "bad"}
	g := NewDataGenerator(WithHTTPClient(&http.Client{Transport: rt}))

	err := g.SeedFromSoilGrids(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Equal(t, 1, rt.calls)
	assert.Equal(t, 50.0, g.channel(entities.SoilMoisture).baseline)
}

func TestNormalizeWV(t *testing.T) {
	assert.InDelta(t, 0.42, normalizeWV(420), 1e-9)
	assert.InDelta(t, 0.3, normalizeWV(0.3), 1e-9)
	assert.Equal(t, 1.0, normalizeWV(1.4))
	assert.Equal(t, 0.0, normalizeWV(-2))
}
