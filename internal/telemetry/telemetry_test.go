package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestResolveTypedAuthFailure(t *testing.T) {
	ev := Resolve([]byte(`{"type":"auth_failure","payload":{"count":3,"subject":"ci-deployer"}}`))
	if ev.Kind != KindTyped || ev.Type != "auth_failure" {
		t.Fatalf("kind=%s type=%s", ev.Kind, ev.Type)
	}
	if ev.Contribution.FailedAuthDelta != 3 {
		t.Fatalf("FailedAuthDelta = %f, want 3", ev.Contribution.FailedAuthDelta)
	}

	// count omitted defaults to one failure
	ev = Resolve([]byte(`{"type":"auth_failure","payload":{"subject":"ci-deployer"}}`))
	if ev.Contribution.FailedAuthDelta != 1 {
		t.Fatalf("default FailedAuthDelta = %f, want 1", ev.Contribution.FailedAuthDelta)
	}
}

func TestResolveTypedAnomaly(t *testing.T) {
	ev := Resolve([]byte(`{"type":"anomaly","payload":{"score":0.7}}`))
	if ev.Contribution.AnomalyScore != 0.7 {
		t.Fatalf("AnomalyScore = %f, want 0.7", ev.Contribution.AnomalyScore)
	}

	// out-of-range scores clamp instead of poisoning the window
	ev = Resolve([]byte(`{"type":"anomaly","payload":{"score":4.2}}`))
	if ev.Contribution.AnomalyScore != 1 {
		t.Fatalf("AnomalyScore = %f, want clamp to 1", ev.Contribution.AnomalyScore)
	}
}

func TestResolveBarePayload(t *testing.T) {
	ev := Resolve([]byte(`{"failed_auth":true,"anomaly_score":0.3}`))
	if ev.Kind != KindRaw {
		t.Fatalf("kind = %s, want raw", ev.Kind)
	}
	if ev.Contribution.FailedAuthDelta != 1 || ev.Contribution.AnomalyScore != 0.3 {
		t.Fatalf("contribution = %+v", ev.Contribution)
	}
}

func TestResolveUnrecognizedContributesZero(t *testing.T) {
	for _, raw := range []string{
		`{"type":"disk_pressure","payload":{"pct":91}}`,
		`{"something":"else"}`,
		`not json at all`,
	} {
		ev := Resolve([]byte(raw))
		if ev.Contribution != (Contribution{}) {
			t.Fatalf("%s: contribution = %+v, want zero", raw, ev.Contribution)
		}
	}
}

func tempEventStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestAppendAndWindow(t *testing.T) {
	s := tempEventStore(t)

	for i := 1; i <= 5; i++ {
		raw := fmt.Sprintf(`{"type":"auth_failure","payload":{"count":%d}}`, i)
		if _, err := s.Append([]byte(raw)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		// created_at ordering must be strict for the window to be stable
		time.Sleep(2 * time.Millisecond)
	}

	window, err := s.Window(3)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("window length = %d, want 3", len(window))
	}
	// last three events, oldest first
	for i, want := range []float64{3, 4, 5} {
		if window[i].FailedAuthDelta != want {
			t.Fatalf("window[%d] = %f, want %f", i, window[i].FailedAuthDelta, want)
		}
	}
}

func TestRecentKeepsRawJSON(t *testing.T) {
	s := tempEventStore(t)
	raw := `{"type":"anomaly","payload":{"score":0.5}}`
	if _, err := s.Append([]byte(raw)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].RawJSON != raw {
		t.Fatalf("RawJSON = %s", events[0].RawJSON)
	}
	if events[0].Type != "anomaly" || events[0].ID == "" {
		t.Fatalf("event = %+v", events[0])
	}
}
