package persistence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// Configurazione Influx
type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string // es. "sensor_readings"
}

// InfluxStore scrive una point per Reading (un field per canale) e legge
// lo storico via Flux.
type InfluxStore struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
}

func NewInfluxStore(client influxdb2.Client, cfg InfluxConfig) (*InfluxStore, error) {
	if client == nil || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "sensor_readings"
	}
	return &InfluxStore{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:    client.QueryAPI(cfg.InfluxOrg),
		bucket:      cfg.InfluxBucket,
		measurement: sanitizeMeasurement(measurement),
	}, nil
}

func (s *InfluxStore) StoreReading(ctx context.Context, r messages.Reading) error {
	point := readingPoint(s.measurement, r)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	log := logger.WithComponent("persistence")
	log.Debug().Str("measurement", s.measurement).
		Time("ts", r.Timestamp).Msg("reading stored")
	return nil
}

func (s *InfluxStore) Query(ctx context.Context, start, end time.Time, channel string) ([]Row, error) {
	res, err := s.queryAPI.Query(ctx, buildFlux(s.bucket, s.measurement, start, end, channel))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	acc := newRowAccumulator()
	for res.Next() {
		acc.add(res.Record())
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx iter: %w", res.Err())
	}
	return acc.rows(), nil
}

// Close e' un no-op: il client e' condiviso con l'InfluxSink e lo chiude il main.
func (s *InfluxStore) Close() {}

// ===== Helpers =====

func readingPoint(measurement string, r messages.Reading) *write.Point {
	t := r.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	fields := make(map[string]interface{}, 10)
	for k, v := range r.Flatten() {
		fields[k] = v
	}
	return influxdb2.NewPoint(measurement, map[string]string{"source": "engine"}, fields, t)
}

func buildFlux(bucket, measurement string, start, end time.Time, channel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)`,
		bucket, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), measurement)
	if channel != "" {
		fmt.Fprintf(&b, `
  |> filter(fn: (r) => r._field == %q)`, channel)
	}
	b.WriteString(`
  |> keep(columns: ["_time","_field","_value"])
  |> sort(columns: ["_time"])
`)
	return b.String()
}

// fluxRecord is the subset of *query.FluxRecord used to rebuild rows.
type fluxRecord interface {
	Time() time.Time
	Field() string
	Value() interface{}
}

// rowAccumulator raggruppa i record (uno per field) in righe per timestamp.
type rowAccumulator struct {
	byTime map[time.Time]map[string]float64
}

func newRowAccumulator() *rowAccumulator {
	return &rowAccumulator{byTime: make(map[time.Time]map[string]float64)}
}

func (a *rowAccumulator) add(rec fluxRecord) {
	v, ok := toFloat(rec.Value())
	if !ok {
		return
	}
	t := rec.Time().UTC()
	m, ok := a.byTime[t]
	if !ok {
		m = make(map[string]float64)
		a.byTime[t] = m
	}
	m[rec.Field()] = v
}

func (a *rowAccumulator) rows() []Row {
	out := make([]Row, 0, len(a.byTime))
	for t, vals := range a.byTime {
		out = append(out, Row{Timestamp: t, Values: vals})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
