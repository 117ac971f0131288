package persistence

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// BreakerStore avvolge uno Store con un circuit breaker: con il backend
// giu' le chiamate falliscono subito con gobreaker.ErrOpenState.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner Store, name string, fails int, openFor time.Duration) *BreakerStore {
	if fails <= 0 {
		fails = 5
	}
	log := logger.WithComponent("persistence")
	return &BreakerStore{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(fails)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}),
	}
}

func (b *BreakerStore) StoreReading(ctx context.Context, r messages.Reading) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.StoreReading(ctx, r)
	})
	return err
}

func (b *BreakerStore) Query(ctx context.Context, start, end time.Time, channel string) ([]Row, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Query(ctx, start, end, channel)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Row), nil
}

// State exposes the breaker state (closed, half-open, open).
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Close() {
	b.inner.Close()
}
