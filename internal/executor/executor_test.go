package executor

import (
	"context"
	"testing"
)

func TestJournalAppliesAndRecords(t *testing.T) {
	j := NewJournal()

	changes := map[string]interface{}{
		"services.checkout-api.allowed_cidrs": []string{"10.0.0.0/8"},
	}
	out := j.Apply(context.Background(), changes)
	if !out.Success {
		t.Fatalf("journal apply failed: %s", out.Detail)
	}

	applied := j.Applied()
	if len(applied) != 1 {
		t.Fatalf("applied sets = %d, want 1", len(applied))
	}
	if _, ok := applied[0]["services.checkout-api.allowed_cidrs"]; !ok {
		t.Fatalf("recorded set = %v", applied[0])
	}
}

func TestFailingAlwaysFails(t *testing.T) {
	out := Failing{}.Apply(context.Background(), map[string]interface{}{"x": 1})
	if out.Success {
		t.Fatal("Failing reported success")
	}
	if out.Detail == "" {
		t.Fatal("Failing must carry a detail message")
	}

	out = Failing{Detail: "maintenance window"}.Apply(context.Background(), nil)
	if out.Detail != "maintenance window" {
		t.Fatalf("detail = %q", out.Detail)
	}
}
