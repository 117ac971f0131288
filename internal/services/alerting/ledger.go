package alerting

import (
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

// Ledger accumula gli alert emessi; la pulizia e' solo per eta' (Sweep).
// Non e' thread-safe: il chiamante serializza gli accessi.
type Ledger struct {
	alerts []messages.Alert
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append concatena senza deduplicare; assegna un ID a chi non ne ha e
// restituisce gli alert cosi' come sono stati salvati.
func (l *Ledger) Append(alerts ...messages.Alert) []messages.Alert {
	stored := make([]messages.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		l.alerts = append(l.alerts, a)
		stored = append(stored, a)
	}
	return stored
}

// Sweep rimuove gli alert con CreatedAt precedente a now-retention e
// restituisce quanti ne ha tolti.
func (l *Ledger) Sweep(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	kept := l.alerts[:0]
	for _, a := range l.alerts {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	removed := len(l.alerts) - len(kept)
	// azzera la coda per non trattenere memoria
	for i := len(kept); i < len(l.alerts); i++ {
		l.alerts[i] = messages.Alert{}
	}
	l.alerts = kept
	return removed
}

// Active restituisce una copia degli alert non risolti.
func (l *Ledger) Active() []messages.Alert {
	out := make([]messages.Alert, 0, len(l.alerts))
	for _, a := range l.alerts {
		if a.Resolved {
			continue
		}
		if a.ResolvedAt != nil {
			t := *a.ResolvedAt
			a.ResolvedAt = &t
		}
		out = append(out, a)
	}
	return out
}

func (l *Ledger) Len() int { return len(l.alerts) }
