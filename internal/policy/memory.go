package policy

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const estimatesSchema = `
CREATE TABLE IF NOT EXISTS policy_estimates (
	action_id     TEXT PRIMARY KEY,
	estimate      REAL NOT NULL,
	select_count  INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_meta (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	updates  INTEGER NOT NULL DEFAULT 0
);
`

// #endregion schema

// #region memory

// Memory persists per-action value estimates and selection counts in SQLite
// so the policy improves across process restarts.
type Memory struct {
	db *sql.DB
}

// NewMemory initializes the policy tables and returns a Memory.
func NewMemory(db *sql.DB) (*Memory, error) {
	if _, err := db.Exec(estimatesSchema); err != nil {
		return nil, fmt.Errorf("migrate policy: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO policy_meta (id, updates) VALUES (1, 0)
		 ON CONFLICT(id) DO NOTHING`,
	); err != nil {
		return nil, fmt.Errorf("seed policy meta: %w", err)
	}
	return &Memory{db: db}, nil
}

// #endregion memory

// #region estimate

// Estimate is one action's learned value state.
type Estimate struct {
	Value float64
	Count int
}

// Estimates returns the stored estimate for each requested action,
// substituting defaultValue for actions never updated.
func (m *Memory) Estimates(ids []ActionID, defaultValue float64) (map[ActionID]Estimate, error) {
	out := make(map[ActionID]Estimate, len(ids))
	for _, id := range ids {
		out[id] = Estimate{Value: defaultValue}
	}

	rows, err := m.db.Query(`SELECT action_id, estimate, select_count FROM policy_estimates`)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var est Estimate
		if err := rows.Scan(&id, &est.Value, &est.Count); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		if _, wanted := out[ActionID(id)]; wanted {
			out[ActionID(id)] = est
		}
	}
	return out, rows.Err()
}

// #endregion estimate

// #region record-reward

// RecordReward folds one reward into the action's running average:
// count++; estimate += (reward - estimate) / count. The read-modify-write
// runs in a single transaction so concurrent cycle completions cannot lose
// updates.
func (m *Memory) RecordReward(id ActionID, reward, defaultValue float64) (Estimate, error) {
	tx, err := m.db.Begin()
	if err != nil {
		return Estimate{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	est := Estimate{Value: defaultValue}
	err = tx.QueryRow(
		`SELECT estimate, select_count FROM policy_estimates WHERE action_id = ?`, string(id),
	).Scan(&est.Value, &est.Count)
	if err != nil && err != sql.ErrNoRows {
		return Estimate{}, fmt.Errorf("read estimate: %w", err)
	}

	est.Count++
	est.Value += (reward - est.Value) / float64(est.Count)

	_, err = tx.Exec(
		`INSERT INTO policy_estimates (action_id, estimate, select_count, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(action_id) DO UPDATE SET
		   estimate = excluded.estimate,
		   select_count = excluded.select_count,
		   updated_at = excluded.updated_at`,
		string(id), est.Value, est.Count, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Estimate{}, fmt.Errorf("write estimate: %w", err)
	}

	if _, err := tx.Exec(`UPDATE policy_meta SET updates = updates + 1 WHERE id = 1`); err != nil {
		return Estimate{}, fmt.Errorf("bump update counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Estimate{}, fmt.Errorf("commit: %w", err)
	}
	return est, nil
}

// Updates returns the global learning-update counter.
func (m *Memory) Updates() (int, error) {
	var n int
	if err := m.db.QueryRow(`SELECT updates FROM policy_meta WHERE id = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("read update counter: %w", err)
	}
	return n, nil
}

// #endregion record-reward
