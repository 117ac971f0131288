package persistence

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/config"
)

// New seleziona il backend da STORE_BACKEND e lo avvolge nel circuit breaker.
// influx puo' essere nil se il backend non e' influx.
func New(ctx context.Context, cfg config.Config, influx influxdb2.Client) (Store, error) {
	var inner Store
	switch cfg.StoreBackend {
	case "influx":
		s, err := NewInfluxStore(influx, InfluxConfig{
			InfluxURL:    cfg.InfluxURL,
			InfluxToken:  cfg.InfluxToken,
			InfluxOrg:    cfg.InfluxOrg,
			InfluxBucket: cfg.InfluxBucket,
			Measurement:  cfg.InfluxMeasurement,
		})
		if err != nil {
			return nil, err
		}
		inner = s
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		inner = s
	case "none", "":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return NewBreakerStore(inner, cfg.StoreBackend+"-store", cfg.BreakerFailures, cfg.BreakerOpenFor), nil
}
