package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/metrics"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
	sensor_simulator "github.com/LeonardoBeccarini/agri_telemetry/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/alerting"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/event"
	irrigation_controller "github.com/LeonardoBeccarini/agri_telemetry/internal/services/irrigation-controller"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/persistence"
)

const Version = "1.0.0"

const (
	defaultStoreTimeout = 5 * time.Second
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
)

// EventPublisher riceve gli eventi prodotti dall'engine (di norma il Dispatcher).
type EventPublisher interface {
	Publish(evt event.CommonEvent) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(event.CommonEvent) bool { return false }

// Option customizes an Engine.
type Option func(*Engine)

func WithStore(s persistence.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

func WithEvents(p EventPublisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

func WithController(c *irrigation_controller.Controller) Option {
	return func(e *Engine) {
		if c != nil {
			e.irrigation = c
		}
	}
}

func WithThresholds(t entities.ThresholdSet) Option {
	return func(e *Engine) { e.thresholds = t.Clone() }
}

func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithSourceName(name string) Option {
	return func(e *Engine) { e.sourceName = name }
}

// Engine possiede tutto lo stato mutabile (reading corrente, soglie, ledger,
// irrigazione) dietro un unico mutex. Le letture restituiscono copie.
type Engine struct {
	mu sync.Mutex

	source     sensor_simulator.Source
	sourceName string
	store      persistence.Store
	events     EventPublisher

	storeTimeout time.Duration
	now          func() time.Time
	// history genera lo storico orario sintetico quando non c'e' un database
	history *sensor_simulator.DataGenerator

	current     model.Reading
	thresholds  entities.ThresholdSet
	ledger      *alerting.Ledger
	irrigation  *irrigation_controller.Controller
	startedAt   time.Time
	readings    uint64
	storeHealth bool
}

// WithHistoryGenerator sets the generator behind the synthetic history served
// when no database is configured.
func WithHistoryGenerator(g *sensor_simulator.DataGenerator) Option {
	return func(e *Engine) { e.history = g }
}

func New(source sensor_simulator.Source, opts ...Option) *Engine {
	e := &Engine{
		source:       source,
		sourceName:   "generator",
		store:        persistence.NopStore{},
		events:       nopPublisher{},
		storeTimeout: defaultStoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		thresholds:   entities.DefaultThresholds(),
		ledger:       alerting.NewLedger(),
		irrigation:   irrigation_controller.NewController(),
		storeHealth:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.history == nil {
		e.history = sensor_simulator.NewDataGenerator()
	}
	e.startedAt = e.now()
	return e
}

// ===================== loop bodies =====================

// CollectReading: source → store (fuori lock, con timeout) → evaluate →
// ledger → eventi. Gli errori di persistenza vengono solo loggati.
func (e *Engine) CollectReading(ctx context.Context) error {
	log := logger.WithComponent("engine")

	r, err := e.source.Next(e.now())
	if errors.Is(err, sensor_simulator.ErrNoReading) {
		log.Debug().Msg("no new reading this tick")
		return nil
	}
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	metrics.ReadingsTotal.WithLabelValues(e.sourceName).Inc()

	e.persist(ctx, r)

	e.mu.Lock()
	e.current = r.Clone()
	e.readings++
	stored := e.ledger.Append(alerting.Evaluate(r, e.thresholds)...)
	active := len(e.ledger.Active())
	e.mu.Unlock()

	for name, v := range r.Flatten() {
		metrics.ChannelValue.WithLabelValues(name).Set(v)
	}
	metrics.AlertsActive.Set(float64(active))

	e.events.Publish(event.FromReading(r))
	for _, a := range stored {
		metrics.AlertsRaisedTotal.WithLabelValues(string(a.Channel), string(a.Severity)).Inc()
		log.Info().Str("alert_id", a.ID).Str("type", a.Type).Str("severity", string(a.Severity)).
			Float64("value", a.Value).Msg(a.Message)
		e.events.Publish(event.FromAlert(a))
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, r model.Reading) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	start := time.Now()
	err := e.store.StoreReading(ctx, r)
	metrics.StoreWriteDuration.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	e.storeHealth = err == nil
	e.mu.Unlock()

	if err != nil {
		metrics.StoreWritesTotal.WithLabelValues("failed").Inc()
		log := logger.WithComponent("engine")
		log.Warn().Err(err).Msg("persist reading failed")
		return
	}
	metrics.StoreWritesTotal.WithLabelValues("ok").Inc()
}

// SweepAlerts rimuove gli alert piu' vecchi di retention.
func (e *Engine) SweepAlerts(retention time.Duration) int {
	e.mu.Lock()
	removed := e.ledger.Sweep(e.now(), retention)
	active := len(e.ledger.Active())
	e.mu.Unlock()

	metrics.AlertsActive.Set(float64(active))
	if removed > 0 {
		metrics.AlertsExpiredTotal.Add(float64(removed))
		log := logger.WithComponent("engine")
		log.Info().Int("removed", removed).Dur("retention", retention).
			Msg("alerts swept")
	}
	return removed
}

// TickIrrigation avanza di un minuto il comando in corso.
func (e *Engine) TickIrrigation() {
	now := e.now()
	e.mu.Lock()
	stopped := e.irrigation.Tick(now)
	zone := e.irrigation.Zone()
	e.mu.Unlock()

	if stopped {
		e.irrigationChanged(messages.IrrigationStateChanged{
			Zone: zone, NewState: entities.IrrigationInactive, Reason: "auto-stop", Timestamp: now,
		})
	}
}

// ===================== snapshot reads =====================

// CurrentReading restituisce l'ultima reading; al primo accesso ne produce una.
func (e *Engine) CurrentReading() (model.Reading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.IsZero() {
		r, err := e.source.Next(e.now())
		if err != nil {
			return model.Reading{}, err
		}
		e.current = r
	}
	return e.current.Clone(), nil
}

func (e *Engine) ActiveAlerts() []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Active()
}

func (e *Engine) IrrigationStatus() model.IrrigationStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.irrigation.Status()
}

func (e *Engine) Thresholds() model.ThresholdSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds.Clone()
}

// SetThresholds sostituisce l'intero set (mai patch parziali).
func (e *Engine) SetThresholds(set model.ThresholdSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.thresholds = set.Clone()
	e.mu.Unlock()
	log := logger.WithComponent("engine")
	log.Info().Int("channels", len(set)).Msg("thresholds replaced")
	return nil
}

// Historical delega allo store. Canale sconosciuto → ErrUnknownChannel;
// errori dello store → lista vuota; senza database → un punto sintetico per ora.
func (e *Engine) Historical(ctx context.Context, hours int, channel string) ([]persistence.Row, error) {
	if channel != "" {
		name, err := entities.ParseChannel(channel)
		if err != nil {
			return nil, err
		}
		channel = string(name)
	}
	if hours <= 0 {
		hours = defaultHistoryHours
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	end := e.now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	if isNop(e.store) {
		return e.syntheticHistory(start, end, channel), nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	rows, err := e.store.Query(ctx, start, end, channel)
	if err != nil {
		log := logger.WithComponent("engine")
		log.Warn().Err(err).Int("hours", hours).Str("channel", channel).
			Msg("historical query failed")
		return []persistence.Row{}, nil
	}
	if rows == nil {
		rows = []persistence.Row{}
	}
	return rows, nil
}

// syntheticHistory produce righe orarie in [start,end] dal generatore dedicato,
// senza toccare la source live.
func (e *Engine) syntheticHistory(start, end time.Time, channel string) []persistence.Row {
	rows := make([]persistence.Row, 0, int(end.Sub(start)/time.Hour)+1)
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		row := persistence.RowFromReading(e.history.Generate(t))
		if channel != "" {
			row.Values = map[string]float64{channel: row.Values[channel]}
		}
		rows = append(rows, row)
	}
	return rows
}

// ExecuteIrrigation valida il comando al boundary e lo applica.
func (e *Engine) ExecuteIrrigation(cmd model.IrrigationCommand) (model.IrrigationStatus, error) {
	if err := cmd.Validate(); err != nil {
		return model.IrrigationStatus{}, err
	}
	now := e.now()

	e.mu.Lock()
	wasActive := e.irrigation.Status().IsActive
	if cmd.Activate {
		e.irrigation.Activate(now, cmd.DurationMinutes, cmd.ZoneID)
	} else {
		e.irrigation.Deactivate(now)
	}
	status := e.irrigation.Status()
	zone := e.irrigation.Zone()
	e.mu.Unlock()

	if cmd.Activate || wasActive {
		evt := messages.IrrigationStateChanged{
			Zone: zone, NewState: status.State(), Reason: "command", Timestamp: now,
		}
		if cmd.Activate {
			evt.DurationMinutes = cmd.DurationMinutes
		}
		e.irrigationChanged(evt)
	}
	return status, nil
}

func (e *Engine) irrigationChanged(evt messages.IrrigationStateChanged) {
	active := 0.0
	if evt.NewState == entities.IrrigationActive {
		active = 1
	}
	metrics.IrrigationActive.Set(active)
	metrics.IrrigationTransitionsTotal.WithLabelValues(string(evt.NewState), evt.Reason).Inc()
	e.events.Publish(event.FromIrrigation(evt))
}

// Status e' lo snapshot di salute del processo.
func (e *Engine) Status() model.SystemStatus {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	st := model.SystemStatus{
		Timestamp:           now,
		SensorsOnline:       !e.current.IsZero(),
		IrrigationAvailable: e.irrigation != nil,
		DatabaseConnected:   e.storeHealth && !isNop(e.store),
		UptimeHours:         now.Sub(e.startedAt).Hours(),
		ActiveAlerts:        len(e.ledger.Active()),
		IrrigationState:     string(e.irrigation.Status().State()),
		Source:              e.sourceName,
		ReadingsCollected:   e.readings,
		Version:             Version,
	}
	if !e.current.IsZero() {
		ts := e.current.Timestamp
		st.LastReading = &ts
	}
	return st
}

func isNop(s persistence.Store) bool {
	_, ok := s.(persistence.NopStore)
	return ok
}
