package trace

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the queryable trace backend. It honors the same
// append-only contract as the JSONL store: records are only ever inserted,
// with a monotonically increasing sequence preserving append order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the trace database and runs migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping trace database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Save appends one record. The insert is a single statement, so concurrent
// saves interleave across records but never within one.
func (s *SQLiteStore) Save(record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode trace record: %w", err)
	}

	query := `
		INSERT INTO run_traces (run_id, plan_id, selected_workflow, status, error_type, duration_seconds, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		record.RunID,
		record.PlanID,
		record.SelectedWorkflow,
		string(record.Status),
		string(record.ErrorType),
		record.DurationSeconds,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append trace record: %w", err)
	}
	return nil
}

// Get returns the first record matching runID in append order.
func (s *SQLiteStore) Get(runID string) (*Record, error) {
	query := `SELECT payload FROM run_traces WHERE run_id = ? ORDER BY seq ASC LIMIT 1`

	var payload string
	err := s.db.QueryRow(query, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace record: %w", err)
	}
	return decodePayload(payload)
}

// ListByPlan returns the records for a plan in append order, keeping the
// last limit records when limit is positive.
func (s *SQLiteStore) ListByPlan(planID string, limit int) ([]*Record, error) {
	records, err := s.queryRecords(`SELECT payload FROM run_traces WHERE plan_id = ? ORDER BY seq ASC`, planID)
	if err != nil {
		return nil, err
	}
	return tail(records, limit), nil
}

// ListAll returns every record in append order.
func (s *SQLiteStore) ListAll(limit int) ([]*Record, error) {
	records, err := s.queryRecords(`SELECT payload FROM run_traces ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return tail(records, limit), nil
}

// Stats aggregates over all records or only those for planID.
func (s *SQLiteStore) Stats(planID string) (*Stats, error) {
	var (
		records []*Record
		err     error
	)
	if planID != "" {
		records, err = s.ListByPlan(planID, 0)
	} else {
		records, err = s.ListAll(0)
	}
	if err != nil {
		return nil, err
	}
	return computeStats(records, planID), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryRecords(query string, args ...any) ([]*Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trace records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan trace record: %w", err)
		}
		rec, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trace records: %w", err)
	}
	return records, nil
}

func decodePayload(payload string) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal([]byte(payload), rec); err != nil {
		return nil, fmt.Errorf("failed to decode trace record: %w", err)
	}
	return rec, nil
}
