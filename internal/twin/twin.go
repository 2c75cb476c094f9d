package twin

import "sort"

// #region constants

// UnrestrictedCIDR is the sentinel for a fully public allow range.
const UnrestrictedCIDR = "0.0.0.0/0"

// TrustedInternalCIDR is the default replacement range for tightened rules.
const TrustedInternalCIDR = "10.0.0.0/8"

// #endregion constants

// #region types

// Service models one workload's network posture.
type Service struct {
	InboundOpenPorts []int           `json:"inbound_open_ports"`
	AllowedCIDRs     map[string]bool `json:"allowed_cidrs"`
	Segmented        bool            `json:"segmented"`
	Quarantined      bool            `json:"quarantined"`
}

// Identity models one principal's credential posture.
type Identity struct {
	Permissions     map[string]bool `json:"permissions"`
	MFAEnabled      bool            `json:"mfa_enabled"`
	TokenTTLMinutes int             `json:"token_ttl_minutes"`
}

// TelemetryHints is the rolling telemetry summary carried on the twin.
type TelemetryHints struct {
	FailedAuthRate5m float64 `json:"failed_auth_rate_5m"`
	AnomalyScore     float64 `json:"anomaly_score"`
}

// Twin is the simulated model of infrastructure posture. It is the single
// piece of mutable shared state in the control loop; ownership rules live in
// the orchestrator.
type Twin struct {
	Services       map[string]Service  `json:"services"`
	Identities     map[string]Identity `json:"identities"`
	TelemetryHints TelemetryHints      `json:"telemetry_hints"`
	Rotations      []string            `json:"rotations,omitempty"` // rotation markers, no structural effect
}

// #endregion types

// #region default

// Default returns the canonical starting twin. It is also the replacement for
// any corrupt twin loaded from storage: a malformed twin is discarded
// wholesale, never partially merged.
func Default() Twin {
	return Twin{
		Services: map[string]Service{
			"checkout-api": {
				InboundOpenPorts: []int{443, 8080},
				AllowedCIDRs:     map[string]bool{UnrestrictedCIDR: true},
				Segmented:        false,
				Quarantined:      false,
			},
			"payments-db": {
				InboundOpenPorts: []int{5432},
				AllowedCIDRs:     map[string]bool{TrustedInternalCIDR: true},
				Segmented:        true,
				Quarantined:      false,
			},
		},
		Identities: map[string]Identity{
			"ci-deployer": {
				Permissions:     map[string]bool{"*": true, "deploy:service": true},
				MFAEnabled:      false,
				TokenTTLMinutes: 240,
			},
			"svc-reporting": {
				Permissions:     map[string]bool{"read:metrics": true},
				MFAEnabled:      true,
				TokenTTLMinutes: 60,
			},
		},
		TelemetryHints: TelemetryHints{},
	}
}

// #endregion default

// #region clone

// Clone returns a deep copy. The simulator mutates only clones.
func (t Twin) Clone() Twin {
	out := Twin{
		Services:       make(map[string]Service, len(t.Services)),
		Identities:     make(map[string]Identity, len(t.Identities)),
		TelemetryHints: t.TelemetryHints,
	}
	for name, svc := range t.Services {
		ports := make([]int, len(svc.InboundOpenPorts))
		copy(ports, svc.InboundOpenPorts)
		cidrs := make(map[string]bool, len(svc.AllowedCIDRs))
		for c := range svc.AllowedCIDRs {
			cidrs[c] = true
		}
		out.Services[name] = Service{
			InboundOpenPorts: ports,
			AllowedCIDRs:     cidrs,
			Segmented:        svc.Segmented,
			Quarantined:      svc.Quarantined,
		}
	}
	for name, id := range t.Identities {
		perms := make(map[string]bool, len(id.Permissions))
		for p := range id.Permissions {
			perms[p] = true
		}
		out.Identities[name] = Identity{
			Permissions:     perms,
			MFAEnabled:      id.MFAEnabled,
			TokenTTLMinutes: id.TokenTTLMinutes,
		}
	}
	if len(t.Rotations) > 0 {
		out.Rotations = make([]string, len(t.Rotations))
		copy(out.Rotations, t.Rotations)
	}
	return out
}

// #endregion clone

// #region validate

// Valid reports whether the twin is complete and well-formed: every service
// and identity carries all of its fields in usable shape. A twin that fails
// this check must be replaced with Default().
func (t Twin) Valid() bool {
	if t.Services == nil || t.Identities == nil {
		return false
	}
	for _, svc := range t.Services {
		if svc.InboundOpenPorts == nil || svc.AllowedCIDRs == nil {
			return false
		}
	}
	for _, id := range t.Identities {
		if id.Permissions == nil {
			return false
		}
		if id.TokenTTLMinutes < 0 {
			return false
		}
	}
	return true
}

// #endregion validate

// #region accessors

// ServiceNames returns service names in sorted order for deterministic
// iteration.
func (t Twin) ServiceNames() []string {
	names := make([]string, 0, len(t.Services))
	for n := range t.Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IdentityNames returns principal names in sorted order.
func (t Twin) IdentityNames() []string {
	names := make([]string, 0, len(t.Identities))
	for n := range t.Identities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PubliclyExposed reports whether any allowed CIDR is the unrestricted range.
func (s Service) PubliclyExposed() bool {
	return s.AllowedCIDRs[UnrestrictedCIDR]
}

// #endregion accessors
