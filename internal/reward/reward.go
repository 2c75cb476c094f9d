package reward

// #region weights

// Weights holds the reward-shaping coefficients. Breakage is penalized twice
// as heavily as risk reduction is rewarded; non-authorization and
// non-execution are penalized independently of simulated outcome quality so
// the policy learns toward actions that are effective, safe, and permitted.
type Weights struct {
	RiskReduction    float64 `yaml:"risk_reduction"`
	BreakageRisk     float64 `yaml:"breakage_risk"`
	PolicyPenalty    float64 `yaml:"policy_penalty"`
	ExecutionPenalty float64 `yaml:"execution_penalty"`
}

// DefaultWeights returns the standard shaping coefficients.
func DefaultWeights() Weights {
	return Weights{
		RiskReduction:    1,
		BreakageRisk:     2,
		PolicyPenalty:    1,
		ExecutionPenalty: 0.5,
	}
}

// #endregion weights

// #region reward

// Breakdown itemizes the reward components for the persisted artifact.
type Breakdown struct {
	RiskReduction    float64 `json:"risk_reduction"`
	BreakageRisk     float64 `json:"breakage_risk"`
	PolicyPenalty    float64 `json:"policy_penalty"`
	ExecutionPenalty float64 `json:"execution_penalty"`
}

// Reward is the scalar feedback for one cycle plus its breakdown. Computed
// once per cycle from already-finalized inputs; immutable.
type Reward struct {
	Value     float64   `json:"value"`
	Breakdown Breakdown `json:"breakdown"`
}

// Calculator converts cycle outcomes into policy feedback.
type Calculator struct {
	weights Weights
}

// NewCalculator creates a calculator with the given weights.
func NewCalculator(weights Weights) *Calculator {
	return &Calculator{weights: weights}
}

// Compute folds observed risk reduction, breakage risk, and the
// authorization/execution outcomes into a scalar reward.
func (c *Calculator) Compute(beforeRisk, afterRisk, breakageRisk float64, policyAllowed, executed bool) Reward {
	riskReduction := beforeRisk - afterRisk
	if riskReduction < 0 {
		riskReduction = 0
	}

	var policyPenalty, executionPenalty float64
	if !policyAllowed {
		policyPenalty = 1
	}
	if !executed {
		executionPenalty = 1
	}

	b := Breakdown{
		RiskReduction:    riskReduction,
		BreakageRisk:     breakageRisk,
		PolicyPenalty:    policyPenalty,
		ExecutionPenalty: executionPenalty,
	}

	return Reward{
		Value: c.weights.RiskReduction*riskReduction -
			c.weights.BreakageRisk*breakageRisk -
			c.weights.PolicyPenalty*policyPenalty -
			c.weights.ExecutionPenalty*executionPenalty,
		Breakdown: b,
	}
}

// #endregion reward
