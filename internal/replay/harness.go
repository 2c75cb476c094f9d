package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/orchestrator"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
	"github.com/danielpatrickdp/hardening-controller/internal/telemetry"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// #region types

// Interaction is one recorded cycle input: the telemetry that arrived before
// the cycle and, optionally, a forced action overriding the policy.
type Interaction struct {
	CycleID      string
	Environment  string
	Events       []json.RawMessage
	ForcedAction policy.ActionID // empty = let the policy choose
}

// ReplayConfig bundles every pipeline stage's config for a dry run.
type ReplayConfig struct {
	Risk     risk.Weights
	Simulate simulate.Config
	Policy   policy.Config
	Reward   reward.Weights
	Rules    gate.Rules
	Actions  []policy.ActionID
}

// DefaultReplayConfig returns the controller's standard stage configs with
// exploration disabled, so replays of the same fixture are deterministic.
func DefaultReplayConfig() ReplayConfig {
	pc := policy.DefaultConfig()
	pc.Epsilon = 0

	return ReplayConfig{
		Risk:     risk.DefaultWeights(),
		Simulate: simulate.DefaultConfig(),
		Policy:   pc,
		Reward:   reward.DefaultWeights(),
		Rules:    gate.DefaultRules(),
		Actions:  policy.PriorityOrder,
	}
}

// Result captures the outcome of replaying one interaction through the
// full pipeline.
type Result struct {
	CycleID string
	Status  orchestrator.Status
	Reason  string

	Action policy.Action
	Mode   string

	RiskBefore   float64
	RiskAfter    float64
	BreakageRisk float64
	Reward       reward.Reward
}

// Summary aggregates a replay run.
type Summary struct {
	TotalCycles     int
	Committed       int
	PolicySkips     int
	SimulationSkips int
	StartRisk       float64
	FinalRisk       float64
	FinalTwin       twin.Twin
}

// #endregion types

// #region harness

// Harness replays recorded cycle inputs through the real pipeline stages
// without touching a database or a remote gate. The policy memory is still
// live: each replayed cycle updates estimates, so a replay also shows what
// the policy would have learned.
type Harness struct {
	model      *risk.Model
	simulator  *simulate.Simulator
	selector   *policy.Selector
	authorizer *gate.RuleAuthorizer
	calc       *reward.Calculator
	config     ReplayConfig
}

// NewHarness builds a harness over a policy memory. Pass a memory backed by
// an in-memory database for fully ephemeral runs.
func NewHarness(memory *policy.Memory, config ReplayConfig) *Harness {
	if len(config.Actions) == 0 {
		config.Actions = policy.PriorityOrder
	}
	model := risk.NewModel(config.Risk)
	return &Harness{
		model:      model,
		simulator:  simulate.NewSimulator(model, config.Simulate),
		selector:   policy.NewSelector(config.Policy, memory),
		authorizer: gate.NewRuleAuthorizer(config.Rules),
		calc:       reward.NewCalculator(config.Reward),
		config:     config,
	}
}

// Replay runs every interaction through select, authorize, simulate, commit
// or skip, and reward, carrying the world model forward in memory.
func (h *Harness) Replay(start twin.Twin, interactions []Interaction) ([]Result, Summary, error) {
	current := start.Clone()
	startRisk := h.model.Score(current)
	results := make([]Result, 0, len(interactions))

	for _, inter := range interactions {
		res, next, err := h.replayOne(current, inter)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("cycle %s: %w", inter.CycleID, err)
		}
		current = next
		results = append(results, res)
	}

	summary := Summarize(results, current)
	summary.StartRisk = startRisk
	summary.FinalRisk = h.model.Score(current)
	return results, summary, nil
}

func (h *Harness) replayOne(current twin.Twin, inter Interaction) (Result, twin.Twin, error) {
	window := make([]telemetry.Contribution, 0, len(inter.Events))
	for _, raw := range inter.Events {
		window = append(window, telemetry.Resolve(raw).Contribution)
	}

	features := h.model.Features(&current, window)
	before := h.model.Score(current)

	var decision policy.Decision
	if inter.ForcedAction != "" {
		decision = policy.Decision{
			Action: policy.Action{ID: inter.ForcedAction},
			Mode:   "forced",
		}
	} else {
		var err error
		decision, err = h.selector.Select(features, h.config.Actions)
		if err != nil {
			return Result{}, current, err
		}
	}

	action := orchestrator.ResolveParams(decision.Action, current)

	env := inter.Environment
	if env == "" {
		env = "sandbox"
	}
	verdict := h.authorizer.Authorize(context.Background(), action, gate.Context{
		Environment: env,
		Actor:       "replay-harness",
		Resource:    orchestrator.ResolveResource(action),
		RiskScore:   before,
	})

	res := Result{
		CycleID:    inter.CycleID,
		Action:     action,
		Mode:       decision.Mode,
		RiskBefore: before,
		RiskAfter:  before,
	}

	sim, err := h.simulator.Simulate(current, action)
	if err != nil {
		if !errors.Is(err, simulate.ErrUnknownAction) {
			return Result{}, current, err
		}
		// same terminal state the live loop gives an unsimulatable action
		res.Status = orchestrator.StatusSkippedBySimulation
		res.Reason = err.Error()
		res.Reward = h.calc.Compute(before, before, 0, verdict.Allowed, false)
		if err := h.selector.Update(features, action.ID, res.Reward.Value); err != nil {
			return Result{}, current, err
		}
		return res, current, nil
	}
	res.RiskAfter = sim.Impact.AfterRisk
	res.BreakageRisk = sim.Impact.BreakageRisk

	next := current
	switch {
	case !verdict.Allowed:
		res.Status = orchestrator.StatusSkippedByPolicy
		res.Reason = verdict.Reason
	case !sim.Pass:
		res.Status = orchestrator.StatusSkippedBySimulation
		res.Reason = fmt.Sprintf("breakage risk %.2f over threshold", sim.Impact.BreakageRisk)
	default:
		res.Status = orchestrator.StatusCommitted
		next = sim.NextTwin
	}

	// Breakage always feeds the reward; risk reduction only when committed,
	// matching the live loop.
	executed := res.Status == orchestrator.StatusCommitted
	after := before
	if executed {
		after = sim.Impact.AfterRisk
	}
	res.Reward = h.calc.Compute(before, after, sim.Impact.BreakageRisk, verdict.Allowed, executed)

	if err := h.selector.Update(features, action.ID, res.Reward.Value); err != nil {
		return Result{}, current, err
	}
	return res, next, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, final twin.Twin) Summary {
	s := Summary{
		TotalCycles: len(results),
		FinalTwin:   final,
	}
	for _, r := range results {
		switch r.Status {
		case orchestrator.StatusCommitted:
			s.Committed++
		case orchestrator.StatusSkippedByPolicy:
			s.PolicySkips++
		case orchestrator.StatusSkippedBySimulation:
			s.SimulationSkips++
		}
	}
	return s
}

// #endregion harness
