package event

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
)

// InfluxSink scrive gli eventi con la WriteAPI asincrona e traccia l'ultimo
// errore di scrittura per /readyz.
type InfluxSink struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewInfluxSink attiva il listener degli errori asincroni di Influx.
func NewInfluxSink(w api.WriteAPI) *InfluxSink {
	s := &InfluxSink{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour), // di default "lontano nel tempo"
		counts:  make(map[string]int64),
	}
	log := logger.WithComponent("influx-sink")
	go func() {
		for err := range w.Errors() {
			if err != nil {
				s.mu.Lock()
				s.lastErr = time.Now()
				s.mu.Unlock()
				log.Error().Err(err).Msg("influx write error")
			}
		}
	}()
	return s
}

func (s *InfluxSink) Name() string { return "influx" }

// Publish accoda la point; gli errori arrivano dal listener.
func (s *InfluxSink) Publish(_ context.Context, evt CommonEvent) error {
	s.api.WritePoint(EventToPoint(evt))
	s.mu.Lock()
	s.counts[evt.EventType]++
	s.mu.Unlock()
	return nil
}

func (s *InfluxSink) Close() error {
	s.api.Flush()
	return nil
}

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (s *InfluxSink) LastErrorAge() time.Duration {
	if s == nil {
		return 99999 * time.Hour
	}
	s.mu.RLock()
	t := s.lastErr
	s.mu.RUnlock()
	return time.Since(t)
}

// Count restituisce quanti eventi di quel tipo sono stati accodati.
func (s *InfluxSink) Count(eventType string) int64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	c := s.counts[eventType]
	s.mu.RUnlock()
	return c
}
