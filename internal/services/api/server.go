package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	sensor_simulator "github.com/LeonardoBeccarini/agri_telemetry/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/persistence"
)

// Engine e' cio' che l'API consuma dall'engine.
type Engine interface {
	CurrentReading() (model.Reading, error)
	Historical(ctx context.Context, hours int, channel string) ([]persistence.Row, error)
	ActiveAlerts() []model.Alert
	IrrigationStatus() model.IrrigationStatus
	ExecuteIrrigation(cmd model.IrrigationCommand) (model.IrrigationStatus, error)
	Thresholds() model.ThresholdSet
	SetThresholds(set model.ThresholdSet) error
	Status() model.SystemStatus
}

// ReadyFunc reports dependency readiness for /readyz.
type ReadyFunc func() map[string]bool

// defaultCommand: POST senza body avvia 15 minuti nella zona di default.
var defaultCommand = model.IrrigationCommand{Activate: true, DurationMinutes: 15}

const maxBodyBytes = 1 << 16

type Handler struct {
	engine      Engine
	ready       ReadyFunc
	streamEvery time.Duration
}

// RouterOption customizes the Handler behind NewRouter.
type RouterOption func(*Handler)

// WithStreamInterval sets how often /ws/sensors pushes the current reading.
func WithStreamInterval(d time.Duration) RouterOption {
	return func(h *Handler) {
		if d > 0 {
			h.streamEvery = d
		}
	}
}

// NewRouter registra tutte le route con logging, recovery e /metrics.
func NewRouter(e Engine, ready ReadyFunc, opts ...RouterOption) *mux.Router {
	h := &Handler{engine: e, ready: ready, streamEvery: defaultStreamInterval}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.Use(Recovery, Logging)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readiness).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// route /api registrate sul router radice: cosi' un metodo errato da' 405 e non 404
	r.HandleFunc("/api/sensors/current", h.currentReading).Methods(http.MethodGet)
	r.HandleFunc("/api/sensors/historical", h.historical).Methods(http.MethodGet)
	r.HandleFunc("/api/irrigation/status", h.irrigationStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/irrigation/control", h.irrigationControl).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts", h.alerts).Methods(http.MethodGet)
	r.HandleFunc("/api/thresholds", h.getThresholds).Methods(http.MethodGet)
	r.HandleFunc("/api/thresholds", h.putThresholds).Methods(http.MethodPut)
	r.HandleFunc("/api/system/status", h.systemStatus).Methods(http.MethodGet)

	r.HandleFunc("/ws/sensors", h.sensorStream).Methods(http.MethodGet)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) readiness(w http.ResponseWriter, _ *http.Request) {
	deps := map[string]bool{}
	if h.ready != nil {
		deps = h.ready()
	}
	ready := true
	for _, ok := range deps {
		ready = ready && ok
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "dependencies": deps})
}

func (h *Handler) currentReading(w http.ResponseWriter, _ *http.Request) {
	r, err := h.engine.CurrentReading()
	if errors.Is(err, sensor_simulator.ErrNoReading) {
		writeError(w, http.StatusServiceUnavailable, "no reading available yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, r)
}

type dataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

func (h *Handler) historical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := 24
	if v := strings.TrimSpace(q.Get("hours")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}
	channel := strings.TrimSpace(q.Get("sensor_type"))

	rows, err := h.engine.Historical(r.Context(), hours, channel)
	if errors.Is(err, entities.ErrUnknownChannel) {
		writeError(w, http.StatusBadRequest, "Unknown sensor type")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if channel == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"sensor_type":  "all",
			"data_points":  rows,
			"total_points": len(rows),
		})
		return
	}
	points := make([]dataPoint, 0, len(rows))
	for _, row := range rows {
		if v, ok := row.Values[channel]; ok {
			points = append(points, dataPoint{Timestamp: row.Timestamp, Value: v})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensor_type":  channel,
		"data_points":  points,
		"total_points": len(points),
	})
}

func (h *Handler) irrigationStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.IrrigationStatus())
}

func (h *Handler) irrigationControl(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	cmd := defaultCommand
	if len(strings.TrimSpace(string(body))) > 0 {
		cmd = model.IrrigationCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	status, err := h.engine.ExecuteIrrigation(cmd)
	if errors.Is(err, entities.ErrInvalidCommand) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := "Irrigation system deactivated"
	if cmd.Activate {
		msg = "Irrigation system activated successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    msg,
		"status":     strings.ToLower(string(status.State())),
		"timestamp":  time.Now().UTC(),
		"irrigation": status,
	})
}

func (h *Handler) alerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ActiveAlerts())
}

func (h *Handler) getThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Thresholds())
}

func (h *Handler) putThresholds(w http.ResponseWriter, r *http.Request) {
	var set model.ThresholdSet
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&set); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(set) == 0 {
		writeError(w, http.StatusBadRequest, "threshold set is empty")
		return
	}
	if err := h.engine.SetThresholds(set); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Thresholds())
}

func (h *Handler) systemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// ===== helpers =====

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
