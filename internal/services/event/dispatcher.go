package event

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/metrics"
)

// DispatcherConfig holds the fan-out settings.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per-sink delivery bound
}

// Dispatcher smista ogni evento a tutti i sink, best-effort: Publish non
// blocca mai il chiamante, a coda piena l'evento viene scartato.
type Dispatcher struct {
	sinks   []Sink
	queue   chan CommonEvent
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan CommonEvent, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
	}
}

// Start avvia i worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	log := logger.WithComponent("dispatcher")
	log.Info().Int("workers", d.workers).Int("sinks", len(d.sinks)).
		Msg("starting event dispatcher")
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Publish accoda evt; false se scartato (coda piena o dispatcher chiuso).
func (d *Dispatcher) Publish(evt CommonEvent) bool {
	if d == nil || len(d.sinks) == 0 {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- evt:
		return true
	default:
		metrics.EventsPublishedTotal.WithLabelValues("queue", "dropped").Inc()
		return false
	}
}

// Stop svuota la coda, ferma i worker e chiude i sink.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for evt := range d.queue {
			d.deliver(evt)
		}
	}
	d.wg.Wait()

	log := logger.WithComponent("dispatcher")
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("sink", s.Name()).Msg("sink close failed")
		}
	}
	log.Info().Msg("event dispatcher stopped")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for evt := range d.queue {
		d.deliver(evt)
	}
	log := logger.WithComponent("dispatcher")
	log.Debug().Int("worker_id", id).Msg("worker stopped")
}

// deliver spedisce a ogni sink; un sink che fallisce (o va in panic) non
// blocca gli altri.
func (d *Dispatcher) deliver(evt CommonEvent) {
	for _, s := range d.sinks {
		d.deliverOne(s, evt)
	}
}

func (d *Dispatcher) deliverOne(s Sink, evt CommonEvent) {
	log := logger.WithComponent("dispatcher").With().Str("sink", s.Name()).Str("event_type", evt.EventType).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("sink panic recovered")
			metrics.EventsPublishedTotal.WithLabelValues(s.Name(), "failed").Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := s.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("event publish failed")
		metrics.EventsPublishedTotal.WithLabelValues(s.Name(), "failed").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(s.Name(), "ok").Inc()
}
