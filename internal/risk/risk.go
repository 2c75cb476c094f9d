package risk

import (
	"github.com/danielpatrickdp/hardening-controller/internal/telemetry"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// #region weights

// Weights holds the additive risk-score constants. The values are untuned
// heuristics carried over from the original loop; they are configuration, not
// code, so operators can re-weight without a rebuild.
type Weights struct {
	PublicExposure      float64 `yaml:"public_exposure"`       // per publicly exposed service
	OpenPort            float64 `yaml:"open_port"`             // per open inbound port
	MissingSegmentation float64 `yaml:"missing_segmentation"`  // per unsegmented service
	WildcardPermission  float64 `yaml:"wildcard_permission"`   // per identity holding "*"
	MissingMFA          float64 `yaml:"missing_mfa"`           // per identity without MFA
	LongTokenTTL        float64 `yaml:"long_token_ttl"`        // per identity over the TTL threshold
	TokenTTLThresholdM  int     `yaml:"token_ttl_threshold_m"` // minutes
	FailedAuthWeight    float64 `yaml:"failed_auth_weight"`    // per failed auth event / 5m
	FailedAuthCap       float64 `yaml:"failed_auth_cap"`
	AnomalyWeight       float64 `yaml:"anomaly_weight"` // scales the [0,1] anomaly score
	AnomalyCap          float64 `yaml:"anomaly_cap"`
}

// DefaultWeights returns the standard constants.
func DefaultWeights() Weights {
	return Weights{
		PublicExposure:      20,
		OpenPort:            2,
		MissingSegmentation: 5,
		WildcardPermission:  25,
		MissingMFA:          10,
		LongTokenTTL:        3,
		TokenTTLThresholdM:  60,
		FailedAuthWeight:    2,
		FailedAuthCap:       10,
		AnomalyWeight:       10,
		AnomalyCap:          10,
	}
}

// #endregion weights

// #region feature-vector

// FeatureVector is the immutable per-cycle snapshot consumed by the action
// selection policy and persisted alongside the risk score.
type FeatureVector struct {
	FailedAuthRate5m         float64 `json:"failed_auth_rate_5m"`
	AnomalyScore             float64 `json:"anomaly_score"`
	OpenInboundExposureCount float64 `json:"open_inbound_exposure_count"`
	PrivilegeEntropyScore    float64 `json:"privilege_entropy_score"`
	PublicExposureScore      float64 `json:"public_exposure_score"`
}

// #endregion feature-vector

// #region model

// Model derives risk scores and feature vectors from the twin.
type Model struct {
	weights Weights
}

// NewModel creates a risk model with the given weights.
func NewModel(weights Weights) *Model {
	return &Model{weights: weights}
}

// #endregion model

// #region score

// Score computes the heuristic [0,100] exposure score. Pure: no side effects,
// and monotone in every individual factor.
func (m *Model) Score(t twin.Twin) float64 {
	w := m.weights
	var score float64

	for _, name := range t.ServiceNames() {
		svc := t.Services[name]
		if svc.PubliclyExposed() {
			score += w.PublicExposure
		}
		score += float64(len(svc.InboundOpenPorts)) * w.OpenPort
		if !svc.Segmented {
			score += w.MissingSegmentation
		}
	}

	for _, name := range t.IdentityNames() {
		id := t.Identities[name]
		if id.Permissions["*"] {
			score += w.WildcardPermission
		}
		if !id.MFAEnabled {
			score += w.MissingMFA
		}
		if id.TokenTTLMinutes > w.TokenTTLThresholdM {
			score += w.LongTokenTTL
		}
	}

	score += capAt(t.TelemetryHints.FailedAuthRate5m*w.FailedAuthWeight, w.FailedAuthCap)
	score += capAt(t.TelemetryHints.AnomalyScore*w.AnomalyWeight, w.AnomalyCap)

	return clamp(score, 0, 100)
}

// #endregion score

// #region features

// Features folds a bounded telemetry window into the five-feature snapshot.
// As its one side effect it refreshes t.TelemetryHints from the window, which
// must happen before any Score call that should see current telemetry.
func (m *Model) Features(t *twin.Twin, window []telemetry.Contribution) FeatureVector {
	var failedAuth, anomalyMax float64
	for _, c := range window {
		failedAuth += c.FailedAuthDelta
		if c.AnomalyScore > anomalyMax {
			anomalyMax = c.AnomalyScore
		}
	}

	t.TelemetryHints.FailedAuthRate5m = failedAuth
	t.TelemetryHints.AnomalyScore = anomalyMax

	var openPorts int
	var public, total int
	for _, name := range t.ServiceNames() {
		svc := t.Services[name]
		openPorts += len(svc.InboundOpenPorts)
		total++
		if svc.PubliclyExposed() {
			public++
		}
	}

	return FeatureVector{
		FailedAuthRate5m:         failedAuth,
		AnomalyScore:             anomalyMax,
		OpenInboundExposureCount: float64(openPorts),
		PrivilegeEntropyScore:    privilegeEntropy(*t),
		PublicExposureScore:      ratio(public, total),
	}
}

// privilegeEntropy measures how concentrated dangerous privilege is: the
// fraction of identities holding the wildcard, weighted up by missing MFA.
func privilegeEntropy(t twin.Twin) float64 {
	if len(t.Identities) == 0 {
		return 0
	}
	var score float64
	for _, name := range t.IdentityNames() {
		id := t.Identities[name]
		if id.Permissions["*"] {
			score += 1.0
			if !id.MFAEnabled {
				score += 0.5
			}
		}
	}
	return clamp(score/float64(len(t.Identities)), 0, 1)
}

// #endregion features

// #region helpers

func capAt(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// #endregion helpers
