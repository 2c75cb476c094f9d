package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsComplete(t *testing.T) {
	c := Default()

	if c.DBPath == "" || c.ListenAddr == "" {
		t.Fatalf("incomplete defaults: %+v", c)
	}
	if c.Environment != "sandbox" {
		t.Fatalf("default environment = %s, want sandbox", c.Environment)
	}
	if c.Policy.Epsilon != 0.2 {
		t.Fatalf("epsilon = %f, want 0.2", c.Policy.Epsilon)
	}
	if c.Simulate.PassThreshold != 0.5 {
		t.Fatalf("pass threshold = %f, want 0.5", c.Simulate.PassThreshold)
	}
	if c.Reward.BreakageRisk != 2 {
		t.Fatalf("breakage weight = %f, want 2", c.Reward.BreakageRisk)
	}
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	doc := `
db_path: /tmp/other.db
environment: prod
policy:
  epsilon: 0.05
simulate:
  pass_threshold: 0.4
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DBPath != "/tmp/other.db" || c.Environment != "prod" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Policy.Epsilon != 0.05 {
		t.Fatalf("epsilon = %f, want 0.05", c.Policy.Epsilon)
	}
	if c.Simulate.PassThreshold != 0.4 {
		t.Fatalf("pass threshold = %f, want 0.4", c.Simulate.PassThreshold)
	}
	// untouched sections keep their defaults
	if c.Reward.RiskReduction != 1 {
		t.Fatalf("reward weights lost: %+v", c.Reward)
	}
	if c.ListenAddr != ":8484" {
		t.Fatalf("listen addr lost: %s", c.ListenAddr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HARDENING_DB", "/tmp/env.db")
	t.Setenv("EPSILON", "0.9")
	t.Setenv("GATE_ADDR", "http://gate:9999")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DBPath != "/tmp/env.db" {
		t.Fatalf("HARDENING_DB not applied: %s", c.DBPath)
	}
	if c.Policy.Epsilon != 0.9 {
		t.Fatalf("EPSILON not applied: %f", c.Policy.Epsilon)
	}
	if c.GateClient.Addr != "http://gate:9999" {
		t.Fatalf("GATE_ADDR not applied: %s", c.GateClient.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
