package reward

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeCleanCommit(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	r := c.Compute(62, 42, 0, true, true)
	if !almostEqual(r.Value, 20) {
		t.Fatalf("value = %f, want 20", r.Value)
	}
	if r.Breakdown.RiskReduction != 20 || r.Breakdown.PolicyPenalty != 0 || r.Breakdown.ExecutionPenalty != 0 {
		t.Fatalf("breakdown = %+v", r.Breakdown)
	}
}

func TestComputeBreakagePenalizedDouble(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	r := c.Compute(62, 52, 0.3, true, true)
	// 10 - 2*0.3
	if !almostEqual(r.Value, 9.4) {
		t.Fatalf("value = %f, want 9.4", r.Value)
	}
}

func TestComputePenalties(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	// policy deny: no execution either
	r := c.Compute(62, 62, 0, false, false)
	if !almostEqual(r.Value, -1.5) {
		t.Fatalf("denied value = %f, want -1.5", r.Value)
	}

	// allowed but execution failed
	r = c.Compute(62, 62, 0, true, false)
	if !almostEqual(r.Value, -0.5) {
		t.Fatalf("failed-exec value = %f, want -0.5", r.Value)
	}
}

func TestComputeClampsNegativeReduction(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	// risk went up; reduction contributes zero rather than going negative
	r := c.Compute(40, 55, 0, true, true)
	if r.Breakdown.RiskReduction != 0 {
		t.Fatalf("RiskReduction = %f, want 0", r.Breakdown.RiskReduction)
	}
	if !almostEqual(r.Value, 0) {
		t.Fatalf("value = %f, want 0", r.Value)
	}
}

func TestRewardMonotoneInReduction(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	small := c.Compute(60, 55, 0.1, true, true)
	large := c.Compute(60, 35, 0.1, true, true)
	if large.Value <= small.Value {
		t.Fatalf("larger reduction paid less: %f vs %f", large.Value, small.Value)
	}
}
