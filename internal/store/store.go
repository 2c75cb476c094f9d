package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/twin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS twin_versions (
	version_id  TEXT PRIMARY KEY,
	parent_id   TEXT,
	twin_json   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES twin_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_twin (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	version_id  TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES twin_versions(version_id)
);

CREATE TABLE IF NOT EXISTS state_snapshots (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id      TEXT NOT NULL,
	twin_version_id  TEXT NOT NULL,
	risk_score       REAL NOT NULL,
	features_json    TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	decision_id  TEXT PRIMARY KEY,
	environment  TEXT NOT NULL,
	actor        TEXT NOT NULL,
	action_id    TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	mode         TEXT NOT NULL,
	scores_json  TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gate_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id  TEXT NOT NULL,
	allowed      INTEGER NOT NULL,
	reason       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS simulations (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id           TEXT NOT NULL,
	pass                  INTEGER NOT NULL,
	before_risk           REAL NOT NULL,
	after_risk            REAL NOT NULL,
	breakage_risk         REAL NOT NULL,
	applied_changes_json  TEXT NOT NULL,
	notes_json            TEXT NOT NULL,
	created_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id  TEXT NOT NULL,
	success      INTEGER NOT NULL,
	detail       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rewards (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id     TEXT NOT NULL,
	value           REAL NOT NULL,
	breakdown_json  TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_results (
	decision_id  TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_decision ON state_snapshots(decision_id);
CREATE INDEX IF NOT EXISTS idx_gate_decision ON gate_results(decision_id);
CREATE INDEX IF NOT EXISTS idx_sim_decision ON simulations(decision_id);
CREATE INDEX IF NOT EXISTS idx_exec_decision ON executions(decision_id);
CREATE INDEX IF NOT EXISTS idx_reward_decision ON rewards(decision_id);
`

// #endregion schema

// #region store-struct

// Store persists twin versions and per-cycle artifacts in SQLite. Artifacts
// are append-only: each stage's output is written before the next stage runs,
// so a crash mid-cycle leaves a legible partial trail.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for packages that share the handle
// (telemetry events, policy estimates).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region twin-versions

// LoadActiveTwin reads the live twin. A missing, corrupt, or malformed twin
// is replaced wholesale with the canonical default (never partially merged)
// and the replacement is persisted before returning.
func (s *Store) LoadActiveTwin() (twin.Twin, string, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_twin WHERE id = 1`).Scan(&versionID)
	if err == sql.ErrNoRows {
		return s.resetToDefault("")
	}
	if err != nil {
		return twin.Twin{}, "", fmt.Errorf("get active: %w", err)
	}

	var twinJSON string
	err = s.db.QueryRow(
		`SELECT twin_json FROM twin_versions WHERE version_id = ?`, versionID,
	).Scan(&twinJSON)
	if err != nil {
		return twin.Twin{}, "", fmt.Errorf("get version %s: %w", versionID, err)
	}

	var t twin.Twin
	if err := json.Unmarshal([]byte(twinJSON), &t); err != nil || !t.Valid() {
		log.Printf("[STORE] twin version %s is corrupt, replacing with canonical default", versionID)
		return s.resetToDefault(versionID)
	}
	return t, versionID, nil
}

// resetToDefault commits a fresh canonical twin and points the live twin at
// it. parentID may be empty on first use.
func (s *Store) resetToDefault(parentID string) (twin.Twin, string, error) {
	t := twin.Default()
	id, err := s.CommitTwin(parentID, t)
	if err != nil {
		return twin.Twin{}, "", fmt.Errorf("reset twin: %w", err)
	}
	return t, id, nil
}

// CommitTwin inserts a new twin version and updates the active pointer
// atomically. Returns the new version id.
func (s *Store) CommitTwin(parentID string, t twin.Twin) (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal twin: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if parentID != "" {
		parentPtr = parentID
	}

	if _, err := tx.Exec(
		`INSERT INTO twin_versions (version_id, parent_id, twin_json, created_at)
		 VALUES (?, ?, ?, ?)`,
		id, parentPtr, string(raw), now,
	); err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO active_twin (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		id,
	); err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RollbackTwin points the live twin back at a previous version. Used when the
// execution backend rejects a committed change.
func (s *Store) RollbackTwin(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM twin_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	if _, err := s.db.Exec(
		`UPDATE active_twin SET version_id = ? WHERE id = 1`, targetVersionID,
	); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion twin-versions
