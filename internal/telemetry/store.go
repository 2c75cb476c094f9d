package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema

const eventsSchema = `
CREATE TABLE IF NOT EXISTS telemetry_events (
	event_id          TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	event_type        TEXT,
	raw_json          TEXT NOT NULL,
	failed_auth_delta REAL NOT NULL DEFAULT 0,
	anomaly_score     REAL NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_created ON telemetry_events(created_at);
`

// #endregion schema

// #region store

// Store persists resolved telemetry events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the telemetry_events table and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("migrate telemetry: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region append

// Append resolves a raw wire item, assigns it an id, and persists it.
func (s *Store) Append(raw []byte) (Event, error) {
	ev := Resolve(raw)
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO telemetry_events
		 (event_id, kind, event_type, raw_json, failed_auth_delta, anomaly_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Kind),
		nullIfEmpty(ev.Type),
		ev.RawJSON,
		ev.Contribution.FailedAuthDelta,
		ev.Contribution.AnomalyScore,
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return ev, nil
}

// #endregion append

// #region window

// Window returns the most recent n contributions, oldest first.
func (s *Store) Window(n int) ([]Contribution, error) {
	rows, err := s.db.Query(
		`SELECT failed_auth_delta, anomaly_score
		 FROM telemetry_events ORDER BY created_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.FailedAuthDelta, &c.AnomalyScore); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows come back newest first; reverse to chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Recent returns the most recent n full events, newest first.
func (s *Store) Recent(n int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT event_id, kind, event_type, raw_json, failed_auth_delta, anomaly_score, created_at
		 FROM telemetry_events ORDER BY created_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var kind string
		var evType sql.NullString
		var createdStr string
		if err := rows.Scan(&ev.ID, &kind, &evType, &ev.RawJSON,
			&ev.Contribution.FailedAuthDelta, &ev.Contribution.AnomalyScore, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		if evType.Valid {
			ev.Type = evType.String
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion window

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
