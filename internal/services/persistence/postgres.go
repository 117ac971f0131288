package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/entities"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model/messages"
)

const defaultTable = "sensor_readings"

// PostgresStore salva una riga per Reading, una colonna per canale.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore apre la connessione, verifica il ping e crea lo schema se manca.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &PostgresStore{db: db, table: defaultTable}
	for _, stmt := range schemaSQL(s.table) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	log := logger.WithComponent("persistence")
	log.Info().Str("table", s.table).Msg("postgres store ready")
	return s, nil
}

func (s *PostgresStore) StoreReading(ctx context.Context, r messages.Reading) error {
	args := make([]interface{}, 0, 11)
	args = append(args, r.Timestamp.UTC())
	for _, spec := range entities.Channels() {
		if v, ok := r.Value(spec.Name); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	if _, err := s.db.ExecContext(ctx, insertSQL(s.table), args...); err != nil {
		return fmt.Errorf("postgres insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, start, end time.Time, channel string) ([]Row, error) {
	cols, err := columnsFor(channel)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectSQL(s.table, cols), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var ts time.Time
		vals := make([]sql.NullFloat64, len(cols))
		dest := make([]interface{}, 0, len(cols)+1)
		dest = append(dest, &ts)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		row := Row{Timestamp: ts.UTC(), Values: make(map[string]float64, len(cols))}
		for i, c := range cols {
			if vals[i].Valid {
				row.Values[c] = vals[i].Float64
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	_ = s.db.Close()
}

// ===== SQL builders =====

func columnsFor(channel string) ([]string, error) {
	if channel == "" {
		cols := make([]string, 0, 10)
		for _, spec := range entities.Channels() {
			cols = append(cols, string(spec.Name))
		}
		return cols, nil
	}
	name, err := entities.ParseChannel(channel)
	if err != nil {
		return nil, err
	}
	return []string{string(name)}, nil
}

func schemaSQL(table string) []string {
	var cols []string
	for _, spec := range entities.Channels() {
		cols = append(cols, fmt.Sprintf("%s DOUBLE PRECISION", pq.QuoteIdentifier(string(spec.Name))))
	}
	t := pq.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, timestamp TIMESTAMPTZ NOT NULL, %s)",
			t, strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (timestamp)",
			pq.QuoteIdentifier(table+"_timestamp_idx"), t),
	}
}

func insertSQL(table string) string {
	cols := []string{"timestamp"}
	ph := []string{"$1"}
	for i, spec := range entities.Channels() {
		cols = append(cols, pq.QuoteIdentifier(string(spec.Name)))
		ph = append(ph, fmt.Sprintf("$%d", i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func selectSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return fmt.Sprintf("SELECT timestamp, %s FROM %s WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp",
		strings.Join(quoted, ", "), pq.QuoteIdentifier(table))
}
