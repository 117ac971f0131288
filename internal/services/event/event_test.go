package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

var ts = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleAlert(sev messages.Severity) messages.Alert {
	return messages.Alert{
		ID: "a1", Type: "soil_moisture_low", Channel: entities.SoilMoisture,
		Direction: messages.DirectionLow, Severity: sev, Value: 20,
		ThresholdMin: 30, ThresholdMax: 70, CreatedAt: ts,
	}
}

func TestFromAlertMapsSeverity(t *testing.T) {
	evt := FromAlert(sampleAlert(messages.SeverityHigh))
	assert.Equal(t, TypeAlert, evt.EventType)
	assert.Equal(t, "error", evt.Severity)
	assert.Equal(t, "soil_moisture", evt.Channel)
	assert.Equal(t, 20.0, evt.Fields["value"])
	assert.Equal(t, ts, evt.Timestamp)

	assert.Equal(t, "warning", FromAlert(sampleAlert(messages.SeverityModerate)).Severity)
}

func TestFromReadingAndIrrigation(t *testing.T) {
	r := messages.Reading{Timestamp: ts}
	r.Set(entities.SoilMoisture, 44)
	r.Set(entities.Nitrogen, 110)
	evt := FromReading(r)
	assert.Equal(t, TypeReading, evt.EventType)
	assert.Equal(t, 44.0, evt.Fields["soil_moisture"])
	assert.Equal(t, 110.0, evt.Fields["nitrogen"])

	irr := FromIrrigation(messages.IrrigationStateChanged{
		Zone: "north", NewState: entities.IrrigationInactive, Reason: "auto-stop", Timestamp: ts,
	})
	assert.Equal(t, "north", irr.Zone)
	assert.Equal(t, "INACTIVE", irr.Fields["new_state"])
	assert.Equal(t, "auto-stop", irr.Fields["reason"])
}

func TestEventToPoint(t *testing.T) {
	p := EventToPoint(FromAlert(sampleAlert(messages.SeverityModerate)))
	assert.Equal(t, "system_event", p.Name())

	tags := map[string]string{}
	for _, tg := range p.TagList() {
		tags[tg.Key] = tg.Value
	}
	assert.Equal(t, TypeAlert, tags["event_type"])
	assert.Equal(t, "soil_moisture", tags["channel"])
	_, hasZone := tags["zone"]
	assert.False(t, hasZone)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(1), fields["count"])
}

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type capturePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (c *capturePublisher) PublishMessage(p []byte) error { return c.PublishTo("", 0, false, p) }
func (c *capturePublisher) PublishTo(topic string, qos byte, _ bool, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, publishCall{topic, qos, p})
	return nil
}
func (c *capturePublisher) Close() {}

func TestMQTTSinkTopicAndQoS(t *testing.T) {
	pub := &capturePublisher{}
	s := NewMQTTSink(pub, "agri/events/")

	require.NoError(t, s.Publish(context.Background(), FromAlert(sampleAlert(messages.SeverityHigh))))
	require.NoError(t, s.Publish(context.Background(), FromReading(messages.Reading{Timestamp: ts})))

	require.Len(t, pub.calls, 2)
	assert.Equal(t, "agri/events/alert/raised", pub.calls[0].topic)
	assert.Equal(t, byte(1), pub.calls[0].qos)
	assert.Equal(t, "agri/events/telemetry/reading", pub.calls[1].topic)
	assert.Equal(t, byte(0), pub.calls[1].qos)

	var decoded CommonEvent
	require.NoError(t, json.Unmarshal(pub.calls[0].payload, &decoded))
	assert.Equal(t, "error", decoded.Severity)
}

type fakeKafkaWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}
func (f *fakeKafkaWriter) Close() error { f.closed = true; return nil }

func TestKafkaSinkKeysByEventType(t *testing.T) {
	w := &fakeKafkaWriter{}
	s := &KafkaSink{writer: w}

	require.NoError(t, s.Publish(context.Background(), FromAlert(sampleAlert(messages.SeverityModerate))))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte(TypeAlert), w.msgs[0].Key)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, ts, w.msgs[0].Time)

	w.err = errors.New("broker down")
	assert.Error(t, s.Publish(context.Background(), FromReading(messages.Reading{Timestamp: ts})))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

type recordingSink struct {
	name string
	mu   sync.Mutex
	got  []CommonEvent
	err  error
	boom bool
}

func (r *recordingSink) Name() string { return r.name }
func (r *recordingSink) Publish(_ context.Context, evt CommonEvent) error {
	if r.boom {
		panic("sink exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, evt)
	return r.err
}
func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherFansOutAndDrainsOnStop(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: errors.New("nope")}
	panicking := &recordingSink{name: "panicking", boom: true}

	d := NewDispatcher(DispatcherConfig{Workers: 2, QueueSize: 16}, panicking, failing, ok)
	d.Start()
	for i := 0; i < 10; i++ {
		assert.True(t, d.Publish(FromReading(messages.Reading{Timestamp: ts})))
	}
	d.Stop()

	assert.Equal(t, 10, ok.count())
	assert.Equal(t, 10, failing.count())
	assert.False(t, d.Publish(FromReading(messages.Reading{Timestamp: ts})))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(DispatcherConfig{QueueSize: 1}, ok)

	assert.True(t, d.Publish(FromReading(messages.Reading{Timestamp: ts})))
	assert.False(t, d.Publish(FromReading(messages.Reading{Timestamp: ts})))

	// mai avviato: Stop consegna quanto rimasto in coda
	d.Stop()
	assert.Equal(t, 1, ok.count())
}

func TestDispatcherWithoutSinks(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	assert.False(t, d.Publish(CommonEvent{}))
	d.Stop()
}

func TestInfluxSinkCountsEvents(t *testing.T) {
	client := influxdb2.NewClient("http://127.0.0.1:1", "token")
	s := NewInfluxSink(client.WriteAPI("agri", "events"))

	require.NoError(t, s.Publish(context.Background(), FromAlert(sampleAlert(messages.SeverityHigh))))
	assert.Equal(t, int64(1), s.Count(TypeAlert))
	assert.Zero(t, s.Count(TypeReading))
	assert.Greater(t, s.LastErrorAge(), time.Hour)
	assert.Equal(t, "influx", s.Name())
}
