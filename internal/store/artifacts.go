package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/executor"
	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
)

// #region records

// SnapshotRecord is the pre-action state artifact.
type SnapshotRecord struct {
	DecisionID    string             `json:"decision_id"`
	TwinVersionID string             `json:"twin_version_id"`
	RiskScore     float64            `json:"risk_score"`
	Features      risk.FeatureVector `json:"features"`
	CreatedAt     time.Time          `json:"created_at"`
}

// DecisionRecord is the action-selection artifact.
type DecisionRecord struct {
	DecisionID  string               `json:"decision_id"`
	Environment string               `json:"environment"`
	Actor       string               `json:"actor"`
	Action      policy.Action        `json:"action"`
	Mode        string               `json:"mode"`
	Scores      map[policy.ActionID]float64 `json:"scores,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// SimulationRecord is the persisted simulator output.
type SimulationRecord struct {
	DecisionID     string                 `json:"decision_id"`
	Pass           bool                   `json:"pass"`
	BeforeRisk     float64                `json:"before_risk"`
	AfterRisk      float64                `json:"after_risk"`
	BreakageRisk   float64                `json:"breakage_risk"`
	AppliedChanges map[string]interface{} `json:"applied_changes"`
	Notes          []string               `json:"notes"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ExecutionRecord is the persisted executor outcome.
type ExecutionRecord struct {
	DecisionID string    `json:"decision_id"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// RewardRecord is the persisted reward artifact.
type RewardRecord struct {
	DecisionID string           `json:"decision_id"`
	Value      float64          `json:"value"`
	Breakdown  reward.Breakdown `json:"breakdown"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Trace is the full persisted trail for one decision id. Pointers are nil for
// stages a crashed or short-circuited cycle never reached.
type Trace struct {
	Decision   *DecisionRecord   `json:"decision,omitempty"`
	Snapshot   *SnapshotRecord   `json:"snapshot,omitempty"`
	Gate       *gate.Response    `json:"gate,omitempty"`
	Simulation *SimulationRecord `json:"simulation,omitempty"`
	Execution  *ExecutionRecord  `json:"execution,omitempty"`
	Reward     *RewardRecord     `json:"reward,omitempty"`
	Status     string            `json:"status,omitempty"`
}

// CycleSummary is one row of the recent-cycles listing.
type CycleSummary struct {
	DecisionID string    `json:"decision_id"`
	ActionID   string    `json:"action_id"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	BeforeRisk float64   `json:"before_risk"`
	AfterRisk  float64   `json:"after_risk"`
	Reward     float64   `json:"reward"`
	CreatedAt  time.Time `json:"created_at"`
}

// #endregion records

// #region append

// AppendSnapshot records the pre-action state artifact.
func (s *Store) AppendSnapshot(decisionID, versionID string, riskScore float64, features risk.FeatureVector) error {
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO state_snapshots (decision_id, twin_version_id, risk_score, features_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		decisionID, versionID, riskScore, string(raw), now(),
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// AppendDecision records the chosen action.
func (s *Store) AppendDecision(rec DecisionRecord) error {
	params, err := json.Marshal(rec.Action.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	var scoresPtr interface{}
	if len(rec.Scores) > 0 {
		raw, err := json.Marshal(rec.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		scoresPtr = string(raw)
	}
	_, err = s.db.Exec(
		`INSERT INTO decisions (decision_id, environment, actor, action_id, params_json, mode, scores_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DecisionID, rec.Environment, rec.Actor, string(rec.Action.ID),
		string(params), rec.Mode, scoresPtr, now(),
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// AppendGateResult records the authorization verdict.
func (s *Store) AppendGateResult(decisionID string, verdict gate.Response) error {
	_, err := s.db.Exec(
		`INSERT INTO gate_results (decision_id, allowed, reason, created_at) VALUES (?, ?, ?, ?)`,
		decisionID, boolInt(verdict.Allowed), verdict.Reason, now(),
	)
	if err != nil {
		return fmt.Errorf("append gate result: %w", err)
	}
	return nil
}

// AppendSimulation records the simulator output.
func (s *Store) AppendSimulation(decisionID string, res simulate.Result) error {
	changes, err := json.Marshal(res.AppliedChanges)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	notes, err := json.Marshal(res.Impact.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO simulations (decision_id, pass, before_risk, after_risk, breakage_risk, applied_changes_json, notes_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		decisionID, boolInt(res.Pass),
		res.Impact.BeforeRisk, res.Impact.AfterRisk, res.Impact.BreakageRisk,
		string(changes), string(notes), now(),
	)
	if err != nil {
		return fmt.Errorf("append simulation: %w", err)
	}
	return nil
}

// AppendExecution records the change backend's outcome.
func (s *Store) AppendExecution(decisionID string, outcome executor.Outcome) error {
	_, err := s.db.Exec(
		`INSERT INTO executions (decision_id, success, detail, created_at) VALUES (?, ?, ?, ?)`,
		decisionID, boolInt(outcome.Success), outcome.Detail, now(),
	)
	if err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	return nil
}

// AppendReward records the reward artifact.
func (s *Store) AppendReward(decisionID string, rw reward.Reward) error {
	breakdown, err := json.Marshal(rw.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO rewards (decision_id, value, breakdown_json, created_at) VALUES (?, ?, ?, ?)`,
		decisionID, rw.Value, string(breakdown), now(),
	)
	if err != nil {
		return fmt.Errorf("append reward: %w", err)
	}
	return nil
}

// AppendCycleResult records the cycle's terminal status.
func (s *Store) AppendCycleResult(decisionID, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO cycle_results (decision_id, status, created_at) VALUES (?, ?, ?)`,
		decisionID, status, now(),
	)
	if err != nil {
		return fmt.Errorf("append cycle result: %w", err)
	}
	return nil
}

// #endregion append

// #region queries

// Trace assembles the full persisted trail for one decision id.
func (s *Store) Trace(decisionID string) (Trace, error) {
	var tr Trace

	var dec DecisionRecord
	var paramsJSON string
	var scoresJSON sql.NullString
	var createdStr string
	err := s.db.QueryRow(
		`SELECT decision_id, environment, actor, action_id, params_json, mode, scores_json, created_at
		 FROM decisions WHERE decision_id = ?`, decisionID,
	).Scan(&dec.DecisionID, &dec.Environment, &dec.Actor, (*string)(&dec.Action.ID),
		&paramsJSON, &dec.Mode, &scoresJSON, &createdStr)
	switch {
	case err == sql.ErrNoRows:
		return Trace{}, fmt.Errorf("decision %s not found", decisionID)
	case err != nil:
		return Trace{}, fmt.Errorf("query decision: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &dec.Action.Params); err != nil {
		return Trace{}, fmt.Errorf("unmarshal params: %w", err)
	}
	if scoresJSON.Valid {
		if err := json.Unmarshal([]byte(scoresJSON.String), &dec.Scores); err != nil {
			return Trace{}, fmt.Errorf("unmarshal scores: %w", err)
		}
	}
	dec.CreatedAt = parseTime(createdStr)
	tr.Decision = &dec

	tr.Snapshot, err = s.traceSnapshot(decisionID)
	if err != nil {
		return Trace{}, err
	}
	tr.Gate, err = s.traceGate(decisionID)
	if err != nil {
		return Trace{}, err
	}
	tr.Simulation, err = s.traceSimulation(decisionID)
	if err != nil {
		return Trace{}, err
	}
	tr.Execution, err = s.traceExecution(decisionID)
	if err != nil {
		return Trace{}, err
	}
	tr.Reward, err = s.traceReward(decisionID)
	if err != nil {
		return Trace{}, err
	}

	var status string
	err = s.db.QueryRow(
		`SELECT status FROM cycle_results WHERE decision_id = ?`, decisionID,
	).Scan(&status)
	if err != nil && err != sql.ErrNoRows {
		return Trace{}, fmt.Errorf("query status: %w", err)
	}
	tr.Status = status

	return tr, nil
}

func (s *Store) traceSnapshot(decisionID string) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var featuresJSON, createdStr string
	err := s.db.QueryRow(
		`SELECT decision_id, twin_version_id, risk_score, features_json, created_at
		 FROM state_snapshots WHERE decision_id = ?`, decisionID,
	).Scan(&rec.DecisionID, &rec.TwinVersionID, &rec.RiskScore, &featuresJSON, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	rec.CreatedAt = parseTime(createdStr)
	return &rec, nil
}

func (s *Store) traceGate(decisionID string) (*gate.Response, error) {
	var allowed int
	var reason string
	err := s.db.QueryRow(
		`SELECT allowed, reason FROM gate_results WHERE decision_id = ?`, decisionID,
	).Scan(&allowed, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query gate result: %w", err)
	}
	return &gate.Response{Allowed: allowed != 0, Reason: reason}, nil
}

func (s *Store) traceSimulation(decisionID string) (*SimulationRecord, error) {
	var rec SimulationRecord
	var pass int
	var changesJSON, notesJSON, createdStr string
	err := s.db.QueryRow(
		`SELECT decision_id, pass, before_risk, after_risk, breakage_risk, applied_changes_json, notes_json, created_at
		 FROM simulations WHERE decision_id = ?`, decisionID,
	).Scan(&rec.DecisionID, &pass, &rec.BeforeRisk, &rec.AfterRisk, &rec.BreakageRisk,
		&changesJSON, &notesJSON, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query simulation: %w", err)
	}
	rec.Pass = pass != 0
	if err := json.Unmarshal([]byte(changesJSON), &rec.AppliedChanges); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	if err := json.Unmarshal([]byte(notesJSON), &rec.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	rec.CreatedAt = parseTime(createdStr)
	return &rec, nil
}

func (s *Store) traceExecution(decisionID string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	var success int
	var createdStr string
	err := s.db.QueryRow(
		`SELECT decision_id, success, detail, created_at FROM executions WHERE decision_id = ?`,
		decisionID,
	).Scan(&rec.DecisionID, &success, &rec.Detail, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query execution: %w", err)
	}
	rec.Success = success != 0
	rec.CreatedAt = parseTime(createdStr)
	return &rec, nil
}

func (s *Store) traceReward(decisionID string) (*RewardRecord, error) {
	var rec RewardRecord
	var breakdownJSON, createdStr string
	err := s.db.QueryRow(
		`SELECT decision_id, value, breakdown_json, created_at FROM rewards WHERE decision_id = ?`,
		decisionID,
	).Scan(&rec.DecisionID, &rec.Value, &breakdownJSON, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reward: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &rec.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	rec.CreatedAt = parseTime(createdStr)
	return &rec, nil
}

// ListCycles returns the most recent cycles, newest first.
func (s *Store) ListCycles(limit int) ([]CycleSummary, error) {
	rows, err := s.db.Query(
		`SELECT d.decision_id, d.action_id, d.mode, d.created_at,
		        COALESCE(c.status, 'incomplete'),
		        COALESCE(sim.before_risk, 0), COALESCE(sim.after_risk, 0),
		        COALESCE(r.value, 0)
		 FROM decisions d
		 LEFT JOIN cycle_results c ON c.decision_id = d.decision_id
		 LEFT JOIN simulations sim ON sim.decision_id = d.decision_id
		 LEFT JOIN rewards r ON r.decision_id = d.decision_id
		 ORDER BY d.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var cs CycleSummary
		var createdStr string
		if err := rows.Scan(&cs.DecisionID, &cs.ActionID, &cs.Mode, &createdStr,
			&cs.Status, &cs.BeforeRisk, &cs.AfterRisk, &cs.Reward); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cs.CreatedAt = parseTime(createdStr)
		out = append(out, cs)
	}
	return out, rows.Err()
}

// #endregion queries

// #region helpers

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
