package store

import (
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/hardening-controller/internal/twin"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadActiveTwinCreatesDefault(t *testing.T) {
	s := tempStore(t)

	tw, versionID, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("LoadActiveTwin: %v", err)
	}
	if versionID == "" {
		t.Fatal("expected non-empty version id")
	}
	if !tw.Valid() {
		t.Fatal("seeded twin invalid")
	}
	if !tw.Services["checkout-api"].PubliclyExposed() {
		t.Fatal("seeded twin is not the canonical default")
	}

	// second load returns the same version, no re-seed
	_, again, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("LoadActiveTwin again: %v", err)
	}
	if again != versionID {
		t.Fatalf("reload produced a new version: %s vs %s", again, versionID)
	}
}

func TestCommitTwinSwapsActivePointer(t *testing.T) {
	s := tempStore(t)

	base, baseID, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("LoadActiveTwin: %v", err)
	}

	next := base.Clone()
	svc := next.Services["checkout-api"]
	svc.AllowedCIDRs = map[string]bool{twin.TrustedInternalCIDR: true}
	next.Services["checkout-api"] = svc

	nextID, err := s.CommitTwin(baseID, next)
	if err != nil {
		t.Fatalf("CommitTwin: %v", err)
	}
	if nextID == baseID {
		t.Fatal("commit reused the parent version id")
	}

	loaded, activeID, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("LoadActiveTwin: %v", err)
	}
	if activeID != nextID {
		t.Fatalf("active = %s, want %s", activeID, nextID)
	}
	if loaded.Services["checkout-api"].PubliclyExposed() {
		t.Fatal("committed hardening not visible on reload")
	}
}

func TestRollbackTwin(t *testing.T) {
	s := tempStore(t)

	base, baseID, _ := s.LoadActiveTwin()
	next := base.Clone()
	svc := next.Services["checkout-api"]
	svc.Quarantined = true
	next.Services["checkout-api"] = svc
	if _, err := s.CommitTwin(baseID, next); err != nil {
		t.Fatalf("CommitTwin: %v", err)
	}

	if err := s.RollbackTwin(baseID); err != nil {
		t.Fatalf("RollbackTwin: %v", err)
	}
	loaded, activeID, _ := s.LoadActiveTwin()
	if activeID != baseID {
		t.Fatalf("active = %s, want rolled-back %s", activeID, baseID)
	}
	if loaded.Services["checkout-api"].Quarantined {
		t.Fatal("rollback did not restore the pre-commit twin")
	}

	if err := s.RollbackTwin("no-such-version"); err == nil {
		t.Fatal("rollback to a missing version must fail")
	}
}

func TestLoadActiveTwinHealsCorruptVersion(t *testing.T) {
	s := tempStore(t)

	_, badID, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.DB().Exec(
		`UPDATE twin_versions SET twin_json = '{"services": null}' WHERE version_id = ?`, badID,
	); err != nil {
		t.Fatalf("corrupt version: %v", err)
	}

	healed, healedID, err := s.LoadActiveTwin()
	if err != nil {
		t.Fatalf("LoadActiveTwin after corruption: %v", err)
	}
	if healedID == badID {
		t.Fatal("corrupt version still active")
	}
	if !healed.Valid() || !healed.Services["checkout-api"].PubliclyExposed() {
		t.Fatal("healed twin is not the canonical default")
	}
}
