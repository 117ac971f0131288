package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

// Sink consegna un CommonEvent a un sistema esterno.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt CommonEvent) error
	Close() error
}

// MQTTSink pubblica su "<prefix>/<event/type>" (i punti diventano livelli).
type MQTTSink struct {
	publisher rabbitmq.IPublisher
	prefix    string
}

func NewMQTTSink(p rabbitmq.IPublisher, prefix string) *MQTTSink {
	return &MQTTSink{publisher: p, prefix: strings.TrimSuffix(prefix, "/")}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Topic(evt CommonEvent) string {
	return s.prefix + "/" + strings.ReplaceAll(evt.EventType, ".", "/")
}

func (s *MQTTSink) Publish(_ context.Context, evt CommonEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	// alert e cambi di stato a QoS1, le reading a QoS0
	var qos byte
	if evt.EventType != TypeReading {
		qos = 1
	}
	return s.publisher.PublishTo(s.Topic(evt), qos, false, payload)
}

func (s *MQTTSink) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink scrive un messaggio per evento, con chiave = tipo evento.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // partition by key
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, evt CommonEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.EventType),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "source_service", Value: []byte(evt.SourceService)},
		},
		Time: evt.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
