package policy

import (
	"testing"

	"github.com/danielpatrickdp/hardening-controller/internal/risk"
)

func newSelector(t *testing.T, config Config) *Selector {
	t.Helper()
	return NewSelector(config, tempMemory(t))
}

func TestSelectExploitPicksHighestEstimate(t *testing.T) {
	s := newSelector(t, Config{Epsilon: 0, Seed: 1})

	if err := s.Update(risk.FeatureVector{}, ActionEnforceMFA, 5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(risk.FeatureVector{}, ActionRotateKey, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	d, err := s.Select(risk.FeatureVector{}, PriorityOrder)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.Mode != "exploit" {
		t.Fatalf("mode = %s, want exploit", d.Mode)
	}
	if d.Action.ID != ActionEnforceMFA {
		t.Fatalf("chose %s, want %s", d.Action.ID, ActionEnforceMFA)
	}
	if len(d.Scores) != len(PriorityOrder) {
		t.Fatalf("scores cover %d actions, want %d", len(d.Scores), len(PriorityOrder))
	}
}

func TestSelectExploitTieBreaksByPriority(t *testing.T) {
	s := newSelector(t, Config{Epsilon: 0, Seed: 1})

	// all estimates equal (default); the first catalog entry must win
	d, err := s.Select(risk.FeatureVector{}, PriorityOrder)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.Action.ID != PriorityOrder[0] {
		t.Fatalf("tie broke to %s, want %s", d.Action.ID, PriorityOrder[0])
	}

	// same tie restricted to a subset
	subset := []ActionID{ActionRotateKey, ActionEnforceMFA}
	d, err = s.Select(risk.FeatureVector{}, subset)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.Action.ID != ActionEnforceMFA {
		t.Fatalf("subset tie broke to %s, want %s (earlier in catalog order)", d.Action.ID, ActionEnforceMFA)
	}
}

func TestSelectExploreStaysInAvailableSet(t *testing.T) {
	s := newSelector(t, Config{Epsilon: 1, Seed: 42})

	subset := []ActionID{ActionQuarantineWorkload, ActionReduceTokenTTL}
	allowed := map[ActionID]bool{ActionQuarantineWorkload: true, ActionReduceTokenTTL: true}
	seen := map[ActionID]bool{}
	for i := 0; i < 50; i++ {
		d, err := s.Select(risk.FeatureVector{}, subset)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if d.Mode != "explore" {
			t.Fatalf("mode = %s, want explore with epsilon 1", d.Mode)
		}
		if !allowed[d.Action.ID] {
			t.Fatalf("explored outside available set: %s", d.Action.ID)
		}
		seen[d.Action.ID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("50 uniform draws over 2 actions hit %d of them", len(seen))
	}
}

func TestSelectEmptyAvailableFallsBack(t *testing.T) {
	s := newSelector(t, Config{Epsilon: 0.5, Seed: 7})

	d, err := s.Select(risk.FeatureVector{}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d.Mode != "no-actions" {
		t.Fatalf("mode = %s, want no-actions", d.Mode)
	}
	if d.Action.ID != ActionTightenInboundRule {
		t.Fatalf("fallback action = %s, want %s", d.Action.ID, ActionTightenInboundRule)
	}
}

func TestUpdateShiftsSelection(t *testing.T) {
	s := newSelector(t, Config{Epsilon: 0, Seed: 1})

	// make rotate_key the clear winner, then punish it below enforce_mfa
	if err := s.Update(risk.FeatureVector{}, ActionRotateKey, 10); err != nil {
		t.Fatalf("Update: %v", err)
	}
	d, _ := s.Select(risk.FeatureVector{}, PriorityOrder)
	if d.Action.ID != ActionRotateKey {
		t.Fatalf("chose %s before punishment, want rotate_key", d.Action.ID)
	}

	if err := s.Update(risk.FeatureVector{}, ActionRotateKey, -30); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(risk.FeatureVector{}, ActionEnforceMFA, 3); err != nil {
		t.Fatalf("Update: %v", err)
	}
	d, _ = s.Select(risk.FeatureVector{}, PriorityOrder)
	if d.Action.ID != ActionEnforceMFA {
		t.Fatalf("chose %s after punishment, want enforce_mfa", d.Action.ID)
	}
}

func TestKnownCatalog(t *testing.T) {
	for _, id := range PriorityOrder {
		if !Known(id) {
			t.Fatalf("catalog action %s not Known", id)
		}
	}
	if Known("drop_all_tables") {
		t.Fatal("unknown id reported as known")
	}
}

func TestParamAccessors(t *testing.T) {
	a := Action{ID: ActionReduceTokenTTL, Params: map[string]interface{}{
		"identity":    "ci-deployer",
		"ttl_minutes": float64(60), // JSON numbers decode as float64
	}}
	if a.ParamString("identity") != "ci-deployer" {
		t.Fatalf("ParamString = %q", a.ParamString("identity"))
	}
	if a.ParamInt("ttl_minutes") != 60 {
		t.Fatalf("ParamInt = %d", a.ParamInt("ttl_minutes"))
	}
	if a.ParamInt("missing") != 0 {
		t.Fatal("absent numeric param should read as 0")
	}
}
