package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/executor"
	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
)

// #endregion

// #region status

// Status is a cycle's terminal state. Every cycle ends in exactly one of
// these; none of them aborts the process.
type Status string

const (
	StatusCommitted           Status = "committed"
	StatusSkippedByPolicy     Status = "skipped-by-policy"
	StatusSkippedBySimulation Status = "skipped-by-simulation"
	StatusExecutionFailed     Status = "execution-failed"
)

// #endregion status

// #region config

// Config holds orchestrator-level settings.
type Config struct {
	Actor            string            `yaml:"actor"`
	TelemetryWindow  int               `yaml:"telemetry_window"` // bounded recent-event fold
	RemoteTimeoutS   int               `yaml:"remote_timeout_s"` // per gate/executor call
	AvailableActions []policy.ActionID `yaml:"-"`                // defaults to the full catalog
}

// DefaultConfig returns standard loop settings.
func DefaultConfig() Config {
	return Config{
		Actor:            "hardening-controller",
		TelemetryWindow:  30,
		RemoteTimeoutS:   3,
		AvailableActions: policy.PriorityOrder,
	}
}

// callBudget is the timeout applied to each blocking remote call.
func (c Config) callBudget() time.Duration {
	if c.RemoteTimeoutS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.RemoteTimeoutS) * time.Second
}

// #endregion config

// #region state-snapshot

// StateSnapshot is the LOAD_STATE artifact surfaced in the cycle result.
type StateSnapshot struct {
	TwinVersionID string             `json:"twin_version_id"`
	RiskScore     float64            `json:"risk_score"`
	Features      risk.FeatureVector `json:"features"`
}

// #endregion state-snapshot

// #region cycle-result

// CycleResult bundles every stage artifact for one cycle. This is the one
// operation result the loop exposes outward.
type CycleResult struct {
	DecisionID string            `json:"decision_id"`
	Status     Status            `json:"status"`
	State      StateSnapshot     `json:"state"`
	Action     policy.Action     `json:"action"`
	Mode       string            `json:"mode"`
	Gate       gate.Response     `json:"gate"`
	Simulation *simulate.Result  `json:"simulation,omitempty"` // nil when the action kind was unknown
	Execution  *executor.Outcome `json:"execution,omitempty"`  // nil when the cycle never executed
	Reward     reward.Reward     `json:"reward"`
}

// Executed reports whether the cycle's change survived execution.
func (r CycleResult) Executed() bool {
	return r.Execution != nil && r.Execution.Success
}

// #endregion cycle-result
