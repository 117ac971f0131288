package sensor_simulator

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

type capturePublisher struct {
	payloads [][]byte
}

func (c *capturePublisher) PublishMessage(p []byte) error {
	c.payloads = append(c.payloads, p)
	return nil
}
func (c *capturePublisher) PublishTo(_ string, _ byte, _ bool, p []byte) error {
	return c.PublishMessage(p)
}
func (c *capturePublisher) Close() {}

func TestSimulatorPublishesGeneratedReading(t *testing.T) {
	pub := &capturePublisher{}
	sim := NewSensorSimulator(pub, NewDataGenerator(WithRand(rand.New(rand.NewSource(5)))))
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	require.NoError(t, sim.publishOnce(now))
	require.Len(t, pub.payloads, 1)

	var r messages.Reading
	require.NoError(t, json.Unmarshal(pub.payloads[0], &r))
	assert.True(t, r.Timestamp.Equal(now))
	assert.Len(t, r.Values, 7)
	assert.NotZero(t, r.NPK.Potassium)
}

func TestSimulatorPropagatesSourceError(t *testing.T) {
	pub := &capturePublisher{}
	sim := NewSensorSimulator(pub, NewIngestSource(&fakeConsumer{}))
	assert.ErrorIs(t, sim.publishOnce(time.Now()), ErrNoReading)
	assert.Empty(t, pub.payloads)
}
