package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/dedup"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

// IngestSource riceve Reading reali via MQTT e ad ogni tick restituisce la
// media dei campioni arrivati dall'ultimo tick.
type IngestSource struct {
	mu       sync.Mutex
	consumer rabbitmq.IConsumer
	deduper  *dedup.Deduper
	buffer   []messages.Reading
}

func NewIngestSource(consumer rabbitmq.IConsumer) *IngestSource {
	return &IngestSource{
		consumer: consumer,
		deduper:  dedup.New(time.Minute, 10000), // hash dei payload gia' bufferizzati
	}
}

// Start avvia la sottoscrizione; ritorna subito.
func (s *IngestSource) Start(ctx context.Context) {
	s.consumer.SetHandler(s.handleMessage)
	go s.consumer.ConsumeMessage(ctx)
}

func (s *IngestSource) handleMessage(_ string, msg mqtt.Message) error {
	return s.ingest(msg.Payload(), msg.Duplicate())
}

// ingest bufferizza una reading. Campioni identici sono validi; si scarta
// solo una redelivery QoS1 (flag DUP) di un payload gia' ricevuto.
func (s *IngestSource) ingest(payload []byte, redelivered bool) error {
	key := dedup.PayloadKey(payload)
	if redelivered && s.deduper.Seen(key) {
		return nil
	}

	var r messages.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("invalid reading: %w", err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	s.deduper.Mark(key)

	s.mu.Lock()
	s.buffer = append(s.buffer, r)
	n := len(s.buffer)
	s.mu.Unlock()

	log := logger.WithComponent("ingest")

	log.Debug().Int("buffered", n).Time("ts", r.Timestamp).Msg("reading buffered")
	return nil
}

// Next svuota il buffer e ne restituisce la media per canale, normalizzata
// al range fisico. Buffer vuoto → ErrNoReading.
func (s *IngestSource) Next(now time.Time) (messages.Reading, error) {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return messages.Reading{}, ErrNoReading
	}
	return aggregate(batch), nil
}

// aggregate: media dei canali presenti, timestamp del campione piu' recente.
func aggregate(batch []messages.Reading) messages.Reading {
	out := messages.Reading{Values: make(map[entities.ChannelName]float64)}
	for _, spec := range entities.Channels() {
		var sum float64
		var count int
		for _, r := range batch {
			if spec.NPK && r.NPK == (messages.NPK{}) {
				continue
			}
			if v, ok := r.Value(spec.Name); ok {
				sum += v
				count++
			}
		}
		if count == 0 {
			continue
		}
		out.Set(spec.Name, spec.Round(spec.Clamp(sum/float64(count))))
	}
	for _, r := range batch {
		if r.Timestamp.After(out.Timestamp) {
			out.Timestamp = r.Timestamp
		}
	}
	return out
}
