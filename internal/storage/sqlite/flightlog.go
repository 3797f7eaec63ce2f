package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/pkg/logger"
	_ "modernc.org/sqlite"
)

// TransitionRecord is one flight state transition as persisted.
type TransitionRecord struct {
	ID        int64     `json:"id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	CreatedAt time.Time `json:"timestamp"`
}

// FlightStorage is a SQLite-based log of a landing flight: state
// transitions, commanded setpoints, and target track observations.
type FlightStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFlightStorage opens (creating if needed) the flight log database.
func NewFlightStorage(dbPath string, log *logger.Logger) (*FlightStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Create tables if they don't exist
	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &FlightStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *FlightStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *FlightStorage) GetDB() *sql.DB {
	return s.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transitions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS setpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			state TEXT,
			vx REAL,
			vy REAL,
			vz REAL,
			yaw_rate REAL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create setpoints table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS track_observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			x REAL,
			y REAL,
			z REAL,
			confidence REAL,
			observed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create track_observations table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_transitions_created_at ON transitions(created_at)`); err != nil {
		return fmt.Errorf("failed to create transitions index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_track_observed_at ON track_observations(observed_at)`); err != nil {
		return fmt.Errorf("failed to create track index: %w", err)
	}

	log.Info("Database schema initialized")
	return nil
}

// StateChanged implements commander.TransitionSink, recording every
// transition as it happens. Failures are logged, not propagated: the
// flight log must never stall the control path.
func (s *FlightStorage) StateChanged(old, new commander.FlightState, at time.Time) {
	_, err := s.db.Exec(
		`INSERT INTO transitions (from_state, to_state, created_at) VALUES (?, ?, ?)`,
		string(old), string(new), at.UTC(),
	)
	if err != nil {
		s.logger.Error("Failed to record state transition",
			logger.String("from", string(old)),
			logger.String("to", string(new)),
			logger.Error(err))
	}
}

// GetTransitions returns the most recent transitions, newest first.
func (s *FlightStorage) GetTransitions(limit int) ([]TransitionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, from_state, to_state, created_at FROM transitions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var records []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		if err := rows.Scan(&rec.ID, &rec.FromState, &rec.ToState, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
