package gate

import (
	"context"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"gopkg.in/yaml.v3"
)

// #region rules

// EnvironmentRule lists what one environment permits. Anything not listed is
// denied.
type EnvironmentRule struct {
	Allow []string `yaml:"allow"` // permitted action ids
	// MinRiskForQuarantine gates quarantine_workload behind an active-incident
	// risk level; 0 disables the extra check.
	MinRiskForQuarantine float64 `yaml:"min_risk_for_quarantine"`
}

// Rules is a deny-by-default rule set keyed by environment.
type Rules struct {
	Environments map[string]EnvironmentRule `yaml:"environments"`
}

// DefaultRules permits everything in sandbox and only low-blast actions in
// prod, with quarantine reserved for high-risk incidents.
func DefaultRules() Rules {
	return Rules{
		Environments: map[string]EnvironmentRule{
			"sandbox": {
				Allow: []string{
					string(policy.ActionTightenInboundRule),
					string(policy.ActionApplySegmentation),
					string(policy.ActionRemoveIAMPermission),
					string(policy.ActionEnforceMFA),
					string(policy.ActionRotateKey),
					string(policy.ActionReduceTokenTTL),
					string(policy.ActionQuarantineWorkload),
				},
			},
			"prod": {
				Allow: []string{
					string(policy.ActionApplySegmentation),
					string(policy.ActionEnforceMFA),
					string(policy.ActionRotateKey),
					string(policy.ActionReduceTokenTTL),
					string(policy.ActionQuarantineWorkload),
				},
				MinRiskForQuarantine: 80,
			},
		},
	}
}

// LoadRules reads a rule file. Malformed YAML is an error; an empty file
// yields an empty (deny-everything) rule set.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	return r, nil
}

// #endregion rules

// #region rule-authorizer

// RuleAuthorizer is the local deny-by-default evaluator used when no remote
// gate is deployed. It implements the same contract the remote evaluator
// honors: unknown action ids always deny, and nothing outside an explicit
// allow list passes.
type RuleAuthorizer struct {
	rules Rules
}

// NewRuleAuthorizer creates a local authorizer over the given rule set.
func NewRuleAuthorizer(rules Rules) *RuleAuthorizer {
	return &RuleAuthorizer{rules: rules}
}

// Authorize implements Authorizer.
func (a *RuleAuthorizer) Authorize(_ context.Context, action policy.Action, gctx Context) Response {
	if !policy.Known(action.ID) {
		return deny(fmt.Sprintf("unknown action id %q", action.ID))
	}

	env, ok := a.rules.Environments[gctx.Environment]
	if !ok {
		return deny(fmt.Sprintf("no policy for environment %q", gctx.Environment))
	}

	allowed := false
	for _, id := range env.Allow {
		if id == string(action.ID) {
			allowed = true
			break
		}
	}
	if !allowed {
		return deny(fmt.Sprintf("action %s not in %s allow list", action.ID, gctx.Environment))
	}

	if action.ID == policy.ActionQuarantineWorkload &&
		env.MinRiskForQuarantine > 0 && gctx.RiskScore < env.MinRiskForQuarantine {
		return deny(fmt.Sprintf("quarantine requires risk score >= %.0f (current %.1f)",
			env.MinRiskForQuarantine, gctx.RiskScore))
	}

	return Response{
		Allowed: true,
		Reason:  fmt.Sprintf("action %s permitted in %s", action.ID, gctx.Environment),
	}
}

// #endregion rule-authorizer
