package irrigation_controller

import (
	"strings"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
)

// ===================== Config / defaults =====================

const (
	defaultTZ      = "Europe/Rome"
	defaultFlowLpm = 10.0
)

// Option customizes a Controller.
type Option func(*Controller)

// WithLocation sets the timezone used to reset the daily runtime.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.tz = loc
		}
	}
}

// WithFlowRate sets the water flow in litres per minute.
func WithFlowRate(lpm float64) Option {
	return func(c *Controller) {
		if lpm > 0 {
			c.flowLpm = lpm
		}
	}
}

// WithDefaultZone sets the zone used when a command carries none.
func WithDefaultZone(zone string) Option {
	return func(c *Controller) {
		if z := strings.TrimSpace(zone); z != "" {
			c.defaultZone = z
		}
	}
}

// ===================== Controller =====================

// Controller e' la macchina a stati INACTIVE/ACTIVE dell'attuatore.
// Tutte le transizioni sono totali; la validazione della durata avviene al
// boundary (IrrigationCommand.Validate). Non e' thread-safe: il chiamante
// serializza gli accessi.
type Controller struct {
	status entities.IrrigationStatus

	tz          *time.Location
	flowLpm     float64
	defaultZone string

	// giorno (mezzanotte locale) a cui si riferisce TotalRuntimeToday
	day time.Time
}

func NewController(opts ...Option) *Controller {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		loc = time.Local
	}
	c := &Controller{
		tz:          loc,
		flowLpm:     defaultFlowLpm,
		defaultZone: entities.DefaultZone,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.refreshWater()
	return c
}

// Activate avvia (o sovrascrive) il comando corrente: last command wins.
func (c *Controller) Activate(now time.Time, durationMinutes int, zone string) {
	c.rollDay(now)

	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = c.defaultZone
	}
	start := now
	dur := durationMinutes
	rem := durationMinutes

	overwrite := c.status.IsActive
	c.status.IsActive = true
	c.status.CurrentZone = zone
	c.status.StartTime = &start
	c.status.DurationMinutes = &dur
	c.status.RemainingMinutes = &rem

	log := logger.WithComponent("irrigation")

	log.Info().
		Str("zone", zone).Int("duration_min", dur).Bool("overwrite", overwrite).
		Msg("irrigation ON")
}

// Deactivate ferma l'irrigazione; no-op se gia' INACTIVE.
func (c *Controller) Deactivate(now time.Time) {
	c.rollDay(now)
	if !c.status.IsActive {
		return
	}
	c.stop()
	log := logger.WithComponent("irrigation")
	log.Info().Str("zone", c.status.CurrentZone).Msg("irrigation OFF")
}

// Tick consuma un minuto di comando. Restituisce true quando il tick ha
// causato l'auto-stop. In INACTIVE non cambia lo stato.
func (c *Controller) Tick(now time.Time) bool {
	c.rollDay(now)
	if !c.status.IsActive {
		return false
	}

	c.status.TotalRuntimeToday++
	c.refreshWater()

	rem := 0
	if c.status.RemainingMinutes != nil {
		rem = *c.status.RemainingMinutes
	}
	rem--
	if rem > 0 {
		c.status.RemainingMinutes = &rem
		return false
	}

	c.stop()
	log := logger.WithComponent("irrigation")
	log.Info().Str("zone", c.status.CurrentZone).Msg("irrigation auto-stop")
	return true
}

// Status restituisce una copia indipendente dello stato.
func (c *Controller) Status() entities.IrrigationStatus {
	return c.status.Clone()
}

// Zone is the zone of the current or last command.
func (c *Controller) Zone() string {
	if c.status.CurrentZone == "" {
		return c.defaultZone
	}
	return c.status.CurrentZone
}

// ===================== helpers =====================

func (c *Controller) stop() {
	c.status.LastActivation = c.status.StartTime
	c.status.IsActive = false
	c.status.StartTime = nil
	c.status.DurationMinutes = nil
	c.status.RemainingMinutes = nil
}

// rollDay azzera il runtime giornaliero al cambio di giorno locale.
func (c *Controller) rollDay(now time.Time) {
	day := midnightLocal(now, c.tz)
	if c.day.IsZero() {
		c.day = day
		return
	}
	if day.After(c.day) {
		c.day = day
		c.status.TotalRuntimeToday = 0
		c.refreshWater()
	}
}

func (c *Controller) refreshWater() {
	liters := float64(c.status.TotalRuntimeToday) * c.flowLpm
	c.status.WaterUsageLiters = &liters
}

func midnightLocal(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
