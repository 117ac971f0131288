package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/metrics"
)

// SchedulerConfig holds loop cadences and the error backoff bounds.
type SchedulerConfig struct {
	ReadingInterval    time.Duration
	SweepInterval      time.Duration
	AlertRetention     time.Duration
	DeepSweepInterval  time.Duration
	DeepRetention      time.Duration
	IrrigationInterval time.Duration
	BackoffMin         time.Duration
	BackoffMax         time.Duration
}

// DefaultSchedulerConfig: reading 30s, sweep 5m/24h, deep sweep 1h/7d, irrigazione 1m.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ReadingInterval:    30 * time.Second,
		SweepInterval:      5 * time.Minute,
		AlertRetention:     24 * time.Hour,
		DeepSweepInterval:  time.Hour,
		DeepRetention:      7 * 24 * time.Hour,
		IrrigationInterval: time.Minute,
		BackoffMin:         5 * time.Second,
		BackoffMax:         30 * time.Second,
	}
}

// Scheduler fa girare i loop periodici dell'engine; ogni loop recupera i
// propri panic e dopo un errore attende un backoff invece dell'intervallo.
type Scheduler struct {
	engine *Engine
	cfg    SchedulerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewScheduler(e *Engine, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.ReadingInterval <= 0 {
		cfg.ReadingInterval = def.ReadingInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.AlertRetention <= 0 {
		cfg.AlertRetention = def.AlertRetention
	}
	if cfg.DeepSweepInterval <= 0 {
		cfg.DeepSweepInterval = def.DeepSweepInterval
	}
	if cfg.DeepRetention <= 0 {
		cfg.DeepRetention = def.DeepRetention
	}
	if cfg.IrrigationInterval <= 0 {
		cfg.IrrigationInterval = def.IrrigationInterval
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	return &Scheduler{engine: e, cfg: cfg}
}

// Start avvia tutti i loop; chiamate ripetute sono no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	log := logger.WithComponent("scheduler")

	log.Info().
		Dur("reading", s.cfg.ReadingInterval).
		Dur("sweep", s.cfg.SweepInterval).
		Dur("deep_sweep", s.cfg.DeepSweepInterval).
		Dur("irrigation", s.cfg.IrrigationInterval).
		Msg("starting scheduler")

	s.spawn(ctx, "reading", s.cfg.ReadingInterval, s.engine.CollectReading)
	s.spawn(ctx, "alert-sweep", s.cfg.SweepInterval, func(context.Context) error {
		s.engine.SweepAlerts(s.cfg.AlertRetention)
		return nil
	})
	s.spawn(ctx, "alert-deep-sweep", s.cfg.DeepSweepInterval, func(context.Context) error {
		s.engine.SweepAlerts(s.cfg.DeepRetention)
		return nil
	})
	s.spawn(ctx, "irrigation", s.cfg.IrrigationInterval, func(context.Context) error {
		s.engine.TickIrrigation()
		return nil
	})
}

// Stop segnala i loop e attende che escano; nessun loop viene interrotto a
// meta' di un'iterazione.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	log := logger.WithComponent("scheduler")
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) spawn(ctx context.Context, name string, interval time.Duration, body func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, name, interval, body)
	}()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, body func(context.Context) error) {
	log := logger.WithComponent("scheduler").With().Str("loop", name).Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffMin
	bo.MaxInterval = s.cfg.BackoffMax
	bo.RandomizationFactor = 0 // resta in [min,max]
	bo.MaxElapsedTime = 0      // mai Stop
	bo.Reset()

	for {
		delay := interval
		if err := runSafe(ctx, body); err != nil {
			delay = bo.NextBackOff()
			metrics.LoopErrorsTotal.WithLabelValues(name).Inc()
			log.Error().Err(err).Dur("backoff", delay).Msg("loop iteration failed")
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug().Msg("loop stopped")
			return
		case <-timer.C:
		}
	}
}

// runSafe converte un panic del body in errore.
func runSafe(ctx context.Context, body func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("scheduler")
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
				Msg("loop panic recovered")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return body(ctx)
}
