package sensor_simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

type fakeConsumer struct {
	handler rabbitmq.Handler
}

func (f *fakeConsumer) ConsumeMessage(ctx context.Context) { <-ctx.Done() }
func (f *fakeConsumer) SetHandler(h rabbitmq.Handler)      { f.handler = h }

func TestIngestEmptyBufferReturnsErrNoReading(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	_, err := s.Next(time.Now())
	assert.ErrorIs(t, err, ErrNoReading)
}

func TestIngestAveragesBufferedReadings(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":40,"soil_ph":6.5,"npk":{"nitrogen":100,"phosphorus":40,"potassium":160},"timestamp":"2024-06-01T10:00:00Z"}`), false))
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":45,"npk":{"nitrogen":120,"phosphorus":50,"potassium":180},"timestamp":"2024-06-01T10:00:20Z"}`), false))

	r, err := s.Next(time.Now())
	require.NoError(t, err)

	assert.Equal(t, 42.5, r.Values[entities.SoilMoisture])
	assert.Equal(t, 6.5, r.Values[entities.SoilPH])
	assert.Equal(t, 110.0, r.NPK.Nitrogen)
	assert.Equal(t, 45.0, r.NPK.Phosphorus)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 20, 0, time.UTC), r.Timestamp.UTC())
	_, hasHumidity := r.Values[entities.Humidity]
	assert.False(t, hasHumidity)

	_, err = s.Next(time.Now())
	assert.ErrorIs(t, err, ErrNoReading)
}

func TestIngestClampsOutOfRangeValues(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":120.37,"soil_ph":2,"timestamp":"2024-06-01T10:00:00Z"}`), false))

	r, err := s.Next(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 90.0, r.Values[entities.SoilMoisture])
	assert.Equal(t, 4.0, r.Values[entities.SoilPH])
}

func (s *IngestSource) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

func TestIngestDropsFlaggedRedelivery(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	payload := []byte(`{"soil_moisture":40,"timestamp":"2024-06-01T10:00:00Z"}`)
	require.NoError(t, s.ingest(payload, false))
	require.NoError(t, s.ingest(payload, true))
	assert.Equal(t, 1, s.buffered())
}

func TestIngestKeepsIdenticalSamples(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":40}`), false))
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":40}`), false))
	require.NoError(t, s.ingest([]byte(`{"soil_moisture":46}`), false))
	assert.Equal(t, 3, s.buffered())

	r, err := s.Next(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 42.0, r.Values[entities.SoilMoisture])
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	s := NewIngestSource(&fakeConsumer{})
	assert.Error(t, s.ingest([]byte(`not json`), false))
}

func TestIngestStartInstallsHandler(t *testing.T) {
	fc := &fakeConsumer{}
	s := NewIngestSource(fc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	assert.NotNil(t, fc.handler)
}
