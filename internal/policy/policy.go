package policy

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/risk"
)

// #region config

// Config holds the exploration parameters. Both values are configuration, not
// constants, so deployments can tune exploration without a rebuild.
type Config struct {
	Epsilon      float64 `yaml:"epsilon"`       // exploration probability
	DefaultValue float64 `yaml:"default_value"` // initial value estimate per action
	Seed         int64   `yaml:"seed"`          // 0 = time-seeded
}

// DefaultConfig returns the standard exploration parameters.
func DefaultConfig() Config {
	return Config{
		Epsilon:      0.2,
		DefaultValue: 0,
	}
}

// #endregion config

// #region decision

// Decision is the policy's output for one cycle: the chosen action plus the
// selection metadata recorded in the decision artifact.
type Decision struct {
	Action Action               `json:"action"`
	Mode   string               `json:"mode"` // "explore" | "exploit" | "no-actions"
	Scores map[ActionID]float64 `json:"scores,omitempty"`
}

// #endregion decision

// #region selector

// Selector is the epsilon-greedy action selection policy backed by the
// persistent value memory.
type Selector struct {
	mu     sync.Mutex
	config Config
	memory *Memory
	rng    *rand.Rand
}

// NewSelector creates a selector. memory must be non-nil; learning state
// lives there.
func NewSelector(config Config, memory *Memory) *Selector {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		config: config,
		memory: memory,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// #endregion selector

// #region select

// Select chooses an action id from the available set. With probability
// epsilon it explores uniformly; otherwise it exploits the highest current
// estimate, breaking ties by PriorityOrder. An empty available set falls back
// to tighten_inbound_rule.
func (s *Selector) Select(features risk.FeatureVector, available []ActionID) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = features // recorded by the caller; epsilon-greedy is context-free

	if len(available) == 0 {
		return Decision{
			Action: Action{ID: ActionTightenInboundRule, Params: map[string]interface{}{}},
			Mode:   "no-actions",
		}, nil
	}

	if s.rng.Float64() < s.config.Epsilon {
		chosen := available[s.rng.Intn(len(available))]
		return Decision{
			Action: Action{ID: chosen, Params: map[string]interface{}{}},
			Mode:   "explore",
		}, nil
	}

	estimates, err := s.memory.Estimates(available, s.config.DefaultValue)
	if err != nil {
		return Decision{}, fmt.Errorf("load estimates: %w", err)
	}

	scores := make(map[ActionID]float64, len(available))
	availSet := make(map[ActionID]bool, len(available))
	for _, id := range available {
		scores[id] = estimates[id].Value
		availSet[id] = true
	}

	// Walk PriorityOrder so equal estimates resolve deterministically.
	var chosen ActionID
	best := 0.0
	first := true
	for _, id := range PriorityOrder {
		if !availSet[id] {
			continue
		}
		if first || scores[id] > best {
			chosen = id
			best = scores[id]
			first = false
		}
	}
	if first {
		// available contained only unknown ids; hand the first one to the
		// gate, which denies unknown kinds.
		chosen = available[0]
	}

	return Decision{
		Action: Action{ID: chosen, Params: map[string]interface{}{}},
		Mode:   "exploit",
		Scores: scores,
	}, nil
}

// #endregion select

// #region update

// Update feeds the cycle's final reward back into the chosen action's running
// average. Serialized with Select so concurrent completions cannot interleave
// the read-modify-write.
func (s *Selector) Update(features risk.FeatureVector, id ActionID, reward float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = features

	if _, err := s.memory.RecordReward(id, reward, s.config.DefaultValue); err != nil {
		return fmt.Errorf("record reward for %s: %w", id, err)
	}
	return nil
}

// #endregion update
