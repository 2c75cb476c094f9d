package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/danielpatrickdp/hardening-controller/internal/executor"
	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
	"github.com/danielpatrickdp/hardening-controller/internal/telemetry"
	"github.com/google/uuid"
)

// #endregion

// #region orchestrator-struct

// Orchestrator sequences one hardening cycle: load state, select an action,
// authorize it, simulate its blast radius, conditionally commit, and feed the
// reward back into the policy. Cycles are serialized against the shared twin:
// a commit never races another cycle's load or commit.
type Orchestrator struct {
	mu sync.Mutex

	store      *store.Store
	events     *telemetry.Store
	model      *risk.Model
	simulator  *simulate.Simulator
	selector   *policy.Selector
	authorizer gate.Authorizer
	exec       executor.Executor
	calc       *reward.Calculator
	config     Config
}

// New creates a fully wired orchestrator.
func New(
	st *store.Store,
	events *telemetry.Store,
	model *risk.Model,
	simulator *simulate.Simulator,
	selector *policy.Selector,
	authorizer gate.Authorizer,
	exec executor.Executor,
	calc *reward.Calculator,
	config Config,
) *Orchestrator {
	if config.TelemetryWindow <= 0 {
		config.TelemetryWindow = DefaultConfig().TelemetryWindow
	}
	if len(config.AvailableActions) == 0 {
		config.AvailableActions = policy.PriorityOrder
	}
	return &Orchestrator{
		store:      st,
		events:     events,
		model:      model,
		simulator:  simulator,
		selector:   selector,
		authorizer: authorizer,
		exec:       exec,
		calc:       calc,
		config:     config,
	}
}

// #endregion orchestrator-struct

// #region run-cycle

// RunCycle executes one full pass of the control loop for the given
// environment. Every cycle completes with a terminal status and a persisted
// artifact trail; errors from individual append calls are logged, not fatal.
func (o *Orchestrator) RunCycle(ctx context.Context, environment string) (CycleResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	decisionID := uuid.New().String()

	// --- LOAD_STATE ---
	liveTwin, versionID, err := o.store.LoadActiveTwin()
	if err != nil {
		return CycleResult{}, fmt.Errorf("load twin: %w", err)
	}

	window, err := o.events.Window(o.config.TelemetryWindow)
	if err != nil {
		return CycleResult{}, fmt.Errorf("load telemetry window: %w", err)
	}

	// Features refreshes the twin's telemetry hints before scoring.
	features := o.model.Features(&liveTwin, window)
	beforeRisk := o.model.Score(liveTwin)

	snapshot := StateSnapshot{
		TwinVersionID: versionID,
		RiskScore:     beforeRisk,
		Features:      features,
	}
	o.append("snapshot", o.store.AppendSnapshot(decisionID, versionID, beforeRisk, features))

	// --- SELECT_ACTION ---
	decision, err := o.selector.Select(features, o.config.AvailableActions)
	if err != nil {
		return CycleResult{}, fmt.Errorf("select action: %w", err)
	}
	action := ResolveParams(decision.Action, liveTwin)

	log.Printf("[CYCLE] %s select: action=%s mode=%s risk=%.1f",
		decisionID, action.ID, decision.Mode, beforeRisk)

	o.append("decision", o.store.AppendDecision(store.DecisionRecord{
		DecisionID:  decisionID,
		Environment: environment,
		Actor:       o.config.Actor,
		Action:      action,
		Mode:        decision.Mode,
		Scores:      decision.Scores,
	}))

	// --- AUTHORIZE ---
	gctx := gate.Context{
		Environment: environment,
		Actor:       o.config.Actor,
		Resource:    ResolveResource(action),
		RiskScore:   beforeRisk,
	}
	authCtx, cancel := context.WithTimeout(ctx, o.config.callBudget())
	verdict := o.authorizer.Authorize(authCtx, action, gctx)
	cancel()

	log.Printf("[GATE] %s allowed=%v reason=%q", decisionID, verdict.Allowed, verdict.Reason)
	o.append("gate result", o.store.AppendGateResult(decisionID, verdict))

	// --- SIMULATE ---
	// Runs even when denied, so the safety verdict lands in the audit trail.
	// Unknown action kinds are the exception: rejected before simulation.
	var simResult *simulate.Result
	if policy.Known(action.ID) {
		res, simErr := o.simulator.Simulate(liveTwin, action)
		if simErr != nil {
			return CycleResult{}, fmt.Errorf("simulate: %w", simErr)
		}
		simResult = &res
		log.Printf("[SIM] %s pass=%v breakage=%.2f delta=%.1f",
			decisionID, res.Pass, res.Impact.BreakageRisk, res.Impact.RiskDelta)
		o.append("simulation", o.store.AppendSimulation(decisionID, res))
	}

	// --- COMMIT | SKIP ---
	status, execution := o.commitOrSkip(ctx, decisionID, versionID, verdict, simResult)

	// --- REWARD ---
	// Risk reduction only counts once the change actually landed; a skipped
	// cycle changed nothing, whatever the simulation promised. Breakage is
	// the simulator's estimate no matter the outcome, so a dangerous pick
	// still costs more than a merely useless one.
	executed := execution != nil && execution.Success
	afterRisk, breakage := beforeRisk, 0.0
	if simResult != nil {
		breakage = simResult.Impact.BreakageRisk
	}
	if executed && simResult != nil {
		afterRisk = simResult.Impact.AfterRisk
	}
	rw := o.calc.Compute(beforeRisk, afterRisk, breakage, verdict.Allowed, executed)
	o.append("reward", o.store.AppendReward(decisionID, rw))

	// --- LEARN ---
	// Runs even when the caller's context is gone: a committed cycle that
	// skips LEARN leaves the policy out of step with the recorded decision.
	if err := o.selector.Update(features, action.ID, rw.Value); err != nil {
		log.Printf("[CYCLE] %s learn failed: %v", decisionID, err)
	}

	o.append("cycle result", o.store.AppendCycleResult(decisionID, string(status)))
	log.Printf("[CYCLE] %s done: status=%s reward=%.2f", decisionID, status, rw.Value)

	return CycleResult{
		DecisionID: decisionID,
		Status:     status,
		State:      snapshot,
		Action:     action,
		Mode:       decision.Mode,
		Gate:       verdict,
		Simulation: simResult,
		Execution:  execution,
		Reward:     rw,
	}, nil
}

// commitOrSkip decides the cycle's terminal path. Commit requires both an
// allow verdict and a passing simulation; anything else leaves the twin
// untouched. An executor rejection rolls the twin back to its pre-commit
// version.
func (o *Orchestrator) commitOrSkip(
	ctx context.Context,
	decisionID, preVersionID string,
	verdict gate.Response,
	simResult *simulate.Result,
) (Status, *executor.Outcome) {
	if !verdict.Allowed {
		return StatusSkippedByPolicy, nil
	}
	if simResult == nil || !simResult.Pass {
		return StatusSkippedBySimulation, nil
	}

	newVersionID, err := o.store.CommitTwin(preVersionID, simResult.NextTwin)
	if err != nil {
		log.Printf("[CYCLE] %s commit failed: %v", decisionID, err)
		outcome := executor.Outcome{Success: false, Detail: err.Error()}
		o.append("execution", o.store.AppendExecution(decisionID, outcome))
		return StatusExecutionFailed, &outcome
	}

	execCtx, cancel := context.WithTimeout(ctx, o.config.callBudget())
	outcome := o.exec.Apply(execCtx, simResult.AppliedChanges)
	cancel()
	o.append("execution", o.store.AppendExecution(decisionID, outcome))

	if !outcome.Success {
		if err := o.store.RollbackTwin(preVersionID); err != nil {
			log.Printf("[CYCLE] %s rollback failed: %v", decisionID, err)
		}
		log.Printf("[CYCLE] %s execution failed, twin rolled back: %s", decisionID, outcome.Detail)
		return StatusExecutionFailed, &outcome
	}

	log.Printf("[CYCLE] %s committed twin version %s", decisionID, newVersionID)
	return StatusCommitted, &outcome
}

// append logs artifact-persistence failures without failing the cycle.
func (o *Orchestrator) append(what string, err error) {
	if err != nil {
		log.Printf("[CYCLE] failed to record %s: %v", what, err)
	}
}

// #endregion run-cycle
