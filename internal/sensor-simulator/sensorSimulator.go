package sensor_simulator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

// SensorSimulator pubblica a intervalli regolari le Reading di una Source
// sul topic di ingest, come farebbe un gateway di campo.
type SensorSimulator struct {
	source    Source
	publisher rabbitmq.IPublisher
}

func NewSensorSimulator(publisher rabbitmq.IPublisher, source Source) *SensorSimulator {
	return &SensorSimulator{source: source, publisher: publisher}
}

// Start blocca fino alla cancellazione di ctx.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	log := logger.WithComponent("sensor-simulator")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case now := <-ticker.C:
			if err := s.publishOnce(now.UTC()); err != nil {
				log.Error().Err(err).Msg("publish error")
			}
		}
	}
}

func (s *SensorSimulator) publishOnce(now time.Time) error {
	r, err := s.source.Next(now)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	//debug
	log := logger.WithComponent("sensor-simulator")
	log.Debug().Time("ts", r.Timestamp).Int("bytes", len(payload)).Msg("pub reading")
	return s.publisher.PublishMessage(payload)
}
