package simulate

import (
	"fmt"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// #region simulator

// Simulator predicts the blast radius of a proposed action against a deep
// copy of the live twin. The input twin is never mutated.
type Simulator struct {
	model  *risk.Model
	config Config
}

// NewSimulator creates a simulator scoring with the given risk model.
func NewSimulator(model *risk.Model, config Config) *Simulator {
	return &Simulator{model: model, config: config}
}

// #endregion simulator

// #region simulate

// Simulate applies the action's deterministic mutation to a clone of live,
// accumulates breakage risk, and rescores. Returns ErrUnknownAction for kinds
// outside the supported set; those must be treated as a gate failure, not
// simulated.
func (s *Simulator) Simulate(live twin.Twin, action policy.Action) (Result, error) {
	if !policy.Known(action.ID) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAction, action.ID)
	}

	next := live.Clone()
	before := s.model.Score(live)

	var breakage float64
	changes := make(map[string]interface{})
	var notes []string

	switch action.ID {
	case policy.ActionTightenInboundRule:
		breakage += s.tightenInboundRule(&next, action, changes, &notes)
		if live.TelemetryHints.FailedAuthRate5m > s.config.IncidentFailedAuthRate {
			breakage += s.config.IncidentTightenBump
			notes = append(notes, fmt.Sprintf(
				"active incident: failed-auth rate %.1f/5m exceeds %.1f, tighten carries extra user impact",
				live.TelemetryHints.FailedAuthRate5m, s.config.IncidentFailedAuthRate))
		}

	case policy.ActionApplySegmentation:
		breakage += s.mutateService(&next, action, changes, &notes, "segmented",
			func(svc *twin.Service) { svc.Segmented = true }, 0)

	case policy.ActionRemoveIAMPermission:
		breakage += s.removeIAMPermission(&next, action, changes, &notes)

	case policy.ActionEnforceMFA:
		breakage += s.mutateIdentity(&next, action, changes, &notes, "mfa_enabled",
			func(id *twin.Identity) { id.MFAEnabled = true }, s.config.EnforceMFA)

	case policy.ActionRotateKey:
		principal := action.ParamString("identity")
		// Numbered off the twin's own rotation history so the same input twin
		// always simulates to the same marker.
		marker := fmt.Sprintf("key-rotation:%s:%d", principal, len(live.Rotations)+1)
		next.Rotations = append(next.Rotations, marker)
		if len(next.Rotations) > MaxRotationMarkers {
			next.Rotations = next.Rotations[len(next.Rotations)-MaxRotationMarkers:]
		}
		changes["rotations."+principal] = marker
		notes = append(notes, fmt.Sprintf("recorded key rotation for %s (no structural change)", principal))
		breakage += s.config.RotateKey

	case policy.ActionReduceTokenTTL:
		ttl := action.ParamInt("ttl_minutes")
		breakage += s.mutateIdentity(&next, action, changes, &notes, "token_ttl_minutes",
			func(id *twin.Identity) { id.TokenTTLMinutes = ttl }, s.config.ReduceTokenTTL)

	case policy.ActionQuarantineWorkload:
		// The disruption cost applies to every quarantine target; an absent
		// target stacks the unknown-service bump on top.
		breakage += s.config.QuarantineWorkload
		breakage += s.mutateService(&next, action, changes, &notes, "quarantined",
			func(svc *twin.Service) { svc.Quarantined = true }, 0)
		notes = append(notes, "quarantine carries high disruption risk for legitimate traffic")
	}

	breakage = clamp01(breakage)
	after := s.model.Score(next)

	return Result{
		Pass:           breakage <= s.config.PassThreshold,
		AppliedChanges: changes,
		Impact: PredictedImpact{
			BeforeRisk:   before,
			AfterRisk:    after,
			RiskDelta:    after - before,
			BreakageRisk: breakage,
			Notes:        notes,
		},
		NextTwin: next,
	}, nil
}

// #endregion simulate

// #region mutations

// tightenInboundRule replaces the target service's allowed CIDR set with the
// single requested CIDR.
func (s *Simulator) tightenInboundRule(next *twin.Twin, action policy.Action,
	changes map[string]interface{}, notes *[]string) float64 {

	name := action.ParamString("service")
	newCIDR := action.ParamString("new_cidr")
	if newCIDR == "" {
		newCIDR = twin.TrustedInternalCIDR
	}

	svc, ok := next.Services[name]
	if !ok {
		*notes = append(*notes, fmt.Sprintf("target service %q not in twin", name))
		return s.config.UnknownService
	}

	svc.AllowedCIDRs = map[string]bool{newCIDR: true}
	next.Services[name] = svc
	changes[fmt.Sprintf("services.%s.allowed_cidrs", name)] = []string{newCIDR}
	*notes = append(*notes, fmt.Sprintf("restricted %s inbound to %s", name, newCIDR))

	if newCIDR == twin.TrustedInternalCIDR {
		return 0
	}
	*notes = append(*notes, fmt.Sprintf("%s is not the trusted internal range", newCIDR))
	return s.config.TightenUntrustedCIDR
}

// removeIAMPermission drops the named permission from the named identity.
func (s *Simulator) removeIAMPermission(next *twin.Twin, action policy.Action,
	changes map[string]interface{}, notes *[]string) float64 {

	principal := action.ParamString("identity")
	perm := action.ParamString("permission")

	id, ok := next.Identities[principal]
	if !ok {
		*notes = append(*notes, fmt.Sprintf("target identity %q not in twin", principal))
		return s.config.UnknownIdentity
	}

	delete(id.Permissions, perm)
	next.Identities[principal] = id
	changes[fmt.Sprintf("identities.%s.permissions.%s", principal, perm)] = false
	*notes = append(*notes, fmt.Sprintf("removed %s from %s", perm, principal))

	if perm == "*" {
		*notes = append(*notes, "removing the unrestricted wildcard may break automation")
		return s.config.RemoveWildcardPerm
	}
	return s.config.RemovePerm
}

// mutateService applies fn to the target service, or charges the
// unknown-service bump when the target is absent.
func (s *Simulator) mutateService(next *twin.Twin, action policy.Action,
	changes map[string]interface{}, notes *[]string,
	field string, fn func(*twin.Service), contribution float64) float64 {

	name := action.ParamString("service")
	svc, ok := next.Services[name]
	if !ok {
		*notes = append(*notes, fmt.Sprintf("target service %q not in twin", name))
		return s.config.UnknownService
	}
	fn(&svc)
	next.Services[name] = svc
	changes[fmt.Sprintf("services.%s.%s", name, field)] = true
	*notes = append(*notes, fmt.Sprintf("set %s.%s", name, field))
	return contribution
}

// mutateIdentity applies fn to the target identity, or charges the
// unknown-identity bump when the target is absent.
func (s *Simulator) mutateIdentity(next *twin.Twin, action policy.Action,
	changes map[string]interface{}, notes *[]string,
	field string, fn func(*twin.Identity), contribution float64) float64 {

	principal := action.ParamString("identity")
	id, ok := next.Identities[principal]
	if !ok {
		*notes = append(*notes, fmt.Sprintf("target identity %q not in twin", principal))
		return s.config.UnknownIdentity
	}
	fn(&id)
	next.Identities[principal] = id
	var val interface{} = true
	if field == "token_ttl_minutes" {
		val = id.TokenTTLMinutes
	}
	changes[fmt.Sprintf("identities.%s.%s", principal, field)] = val
	*notes = append(*notes, fmt.Sprintf("set %s.%s", principal, field))
	return contribution
}

// #endregion mutations

// #region helpers

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
