package simulate

import (
	"errors"

	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// ErrUnknownAction marks an action kind outside the supported set. Unknown
// kinds are rejected before simulation, never simulated.
var ErrUnknownAction = errors.New("unknown action kind")

// MaxRotationMarkers bounds the twin's rotation history; older markers are
// dropped once the list is full.
const MaxRotationMarkers = 20

// #region config

// Config holds breakage-risk contributions and the safety threshold. All
// values live in [0,1]; they are kept as named configuration because they are
// untuned heuristics.
type Config struct {
	PassThreshold float64 `yaml:"pass_threshold"` // pass iff breakage <= threshold

	TightenUntrustedCIDR float64 `yaml:"tighten_untrusted_cidr"` // CIDR other than trusted internal
	UnknownService       float64 `yaml:"unknown_service"`
	UnknownIdentity      float64 `yaml:"unknown_identity"`
	RemoveWildcardPerm   float64 `yaml:"remove_wildcard_perm"`
	RemovePerm           float64 `yaml:"remove_perm"`
	EnforceMFA           float64 `yaml:"enforce_mfa"`
	RotateKey            float64 `yaml:"rotate_key"`
	ReduceTokenTTL       float64 `yaml:"reduce_token_ttl"`
	QuarantineWorkload   float64 `yaml:"quarantine_workload"`

	// IncidentTightenBump applies to tighten_inbound_rule while the live
	// failed-auth rate exceeds IncidentFailedAuthRate, modeling user-impact
	// risk during an active incident.
	IncidentTightenBump    float64 `yaml:"incident_tighten_bump"`
	IncidentFailedAuthRate float64 `yaml:"incident_failed_auth_rate"`
}

// DefaultConfig returns the standard breakage table.
func DefaultConfig() Config {
	return Config{
		PassThreshold:          0.5,
		TightenUntrustedCIDR:   0.2,
		UnknownService:         0.3,
		UnknownIdentity:        0.2,
		RemoveWildcardPerm:     0.15,
		RemovePerm:             0.05,
		EnforceMFA:             0.05,
		RotateKey:              0.1,
		ReduceTokenTTL:         0.05,
		QuarantineWorkload:     0.6,
		IncidentTightenBump:    0.1,
		IncidentFailedAuthRate: 2,
	}
}

// #endregion config

// #region result

// PredictedImpact summarizes the simulated effect of one action.
type PredictedImpact struct {
	BeforeRisk   float64  `json:"before_risk"`
	AfterRisk    float64  `json:"after_risk"`
	RiskDelta    float64  `json:"risk_delta"`
	BreakageRisk float64  `json:"breakage_risk"`
	Notes        []string `json:"notes"`
}

// Result is the output of one simulation call. NextTwin only becomes the live
// twin if the cycle commits.
type Result struct {
	Pass           bool                   `json:"pass_fail"`
	AppliedChanges map[string]interface{} `json:"applied_changes"`
	Impact         PredictedImpact        `json:"predicted_impact"`
	NextTwin       twin.Twin              `json:"next_world_model"`
}

// #endregion result
