package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// SetpointRecord is one commanded velocity setpoint as persisted.
type SetpointRecord struct {
	ID        int64     `json:"id"`
	State     string    `json:"state"`
	VX        float64   `json:"vx"`
	VY        float64   `json:"vy"`
	VZ        float64   `json:"vz"`
	YawRate   float64   `json:"yaw_rate"`
	CreatedAt time.Time `json:"timestamp"`
}

// ObservationRecord is one target track observation as persisted.
type ObservationRecord struct {
	ID         int64     `json:"id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TelemetryStorage handles storage of setpoint and track telemetry. It
// shares the flight log database.
type TelemetryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTelemetryStorage creates a new SQLite telemetry storage
func NewTelemetryStorage(db *sql.DB, log *logger.Logger) *TelemetryStorage {
	return &TelemetryStorage{
		db:     db,
		logger: log.Named("sqlite"),
	}
}

// RecordSetpoint inserts a commanded setpoint with the flight state that
// issued it.
func (s *TelemetryStorage) RecordSetpoint(state string, sp vehicle.Setpoint, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO setpoints (state, vx, vy, vz, yaw_rate, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		state, sp.VX, sp.VY, sp.VZ, sp.YawRate, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert setpoint: %w", err)
	}
	return nil
}

// RecordObservation inserts a target track observation.
func (s *TelemetryStorage) RecordObservation(obs track.Observation) error {
	_, err := s.db.Exec(
		`INSERT INTO track_observations (x, y, z, confidence, observed_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		obs.X, obs.Y, obs.Z, obs.Confidence, obs.Timestamp.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track observation: %w", err)
	}
	return nil
}

// GetObservations returns the most recent track observations, newest first.
func (s *TelemetryStorage) GetObservations(limit int) ([]ObservationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, x, y, z, confidence, observed_at, created_at
		 FROM track_observations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query track observations: %w", err)
	}
	defer rows.Close()

	var records []ObservationRecord
	for rows.Next() {
		var rec ObservationRecord
		if err := rows.Scan(&rec.ID, &rec.X, &rec.Y, &rec.Z, &rec.Confidence, &rec.ObservedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track observation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetSetpoints returns the most recent setpoints, newest first.
func (s *TelemetryStorage) GetSetpoints(limit int) ([]SetpointRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, state, vx, vy, vz, yaw_rate, created_at FROM setpoints ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query setpoints: %w", err)
	}
	defer rows.Close()

	var records []SetpointRecord
	for rows.Next() {
		var rec SetpointRecord
		if err := rows.Scan(&rec.ID, &rec.State, &rec.VX, &rec.VY, &rec.VZ, &rec.YawRate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setpoint: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
