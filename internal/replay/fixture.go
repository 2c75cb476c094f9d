package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	StartModel      *twin.Twin              `json:"start_model,omitempty"` // nil = canonical default
	Environment     string                  `json:"environment"`
	Epsilon         *float64                `json:"epsilon,omitempty"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results,omitempty"`
}

// FixtureInteraction mirrors Interaction with JSON tags. Events carry the
// raw telemetry bodies exactly as an ingest endpoint would receive them.
type FixtureInteraction struct {
	CycleID      string            `json:"cycle_id"`
	Environment  string            `json:"environment,omitempty"`
	Events       []json.RawMessage `json:"events,omitempty"`
	ForcedAction string            `json:"forced_action,omitempty"`
}

// FixtureExpectedResult pins the terminal status (and optionally the action)
// a cycle must reach.
type FixtureExpectedResult struct {
	CycleID string `json:"cycle_id"`
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// StartTwin returns the fixture's starting world model, or the canonical
// default when the fixture omits one.
func (f *Fixture) StartTwin() twin.Twin {
	if f.StartModel != nil {
		return f.StartModel.Clone()
	}
	return twin.Default()
}

// ToReplayConfig builds the run config, applying fixture overrides.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	c := DefaultReplayConfig()
	if f.Epsilon != nil {
		c.Policy.Epsilon = *f.Epsilon
	}
	return c
}

// ToInteractions converts the fixture turns to domain interactions,
// inheriting the fixture-level environment where a turn omits its own.
func (f *Fixture) ToInteractions() []Interaction {
	out := make([]Interaction, 0, len(f.Interactions))
	for _, fi := range f.Interactions {
		env := fi.Environment
		if env == "" {
			env = f.Environment
		}
		out = append(out, Interaction{
			CycleID:      fi.CycleID,
			Environment:  env,
			Events:       fi.Events,
			ForcedAction: policy.ActionID(fi.ForcedAction),
		})
	}
	return out
}

// Verify compares replay results against the fixture's expectations and
// returns one message per mismatch.
func (f *Fixture) Verify(results []Result) []string {
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.CycleID] = r
	}

	var mismatches []string
	for _, want := range f.ExpectedResults {
		got, ok := byID[want.CycleID]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("cycle %s: no result", want.CycleID))
			continue
		}
		if want.Status != "" && string(got.Status) != want.Status {
			mismatches = append(mismatches,
				fmt.Sprintf("cycle %s: status %s, want %s", want.CycleID, got.Status, want.Status))
		}
		if want.Action != "" && string(got.Action.ID) != want.Action {
			mismatches = append(mismatches,
				fmt.Sprintf("cycle %s: action %s, want %s", want.CycleID, got.Action.ID, want.Action))
		}
	}
	return mismatches
}

// #endregion fixture-loader
