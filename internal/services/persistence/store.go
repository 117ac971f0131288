package persistence

import (
	"context"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// Row e' una riga storica: tutti i canali (NPK inclusi) di una Reading,
// oppure il solo canale richiesto.
type Row struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Store e' il contratto del collaboratore di persistenza.
type Store interface {
	StoreReading(ctx context.Context, r messages.Reading) error
	// Query restituisce le righe in [start,end] ordinate per tempo;
	// channel vuoto = tutti i canali.
	Query(ctx context.Context, start, end time.Time, channel string) ([]Row, error)
	Close()
}

// NopStore scarta le scritture e non ha storico.
type NopStore struct{}

func (NopStore) StoreReading(context.Context, messages.Reading) error { return nil }

func (NopStore) Query(context.Context, time.Time, time.Time, string) ([]Row, error) {
	return []Row{}, nil
}

func (NopStore) Close() {}

// RowFromReading is the storage shape of one Reading.
func RowFromReading(r messages.Reading) Row {
	return Row{Timestamp: r.Timestamp, Values: r.Flatten()}
}
