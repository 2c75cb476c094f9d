package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/replay"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to hardening.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/hardening.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	fixture, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	harness, cleanup, err := newEphemeralHarness(fixture.ToReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	defer cleanup()

	results, summary, err := harness.Replay(fixture.StartTwin(), fixture.ToInteractions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	if fixture.Description != "" {
		fmt.Printf("fixture: %s\n\n", fixture.Description)
	}
	printResults(results, summary)

	if mismatches := fixture.Verify(results); len(mismatches) > 0 {
		fmt.Println("\nFAIL")
		for _, m := range mismatches {
			fmt.Printf("  %s\n", m)
		}
		return 1
	}
	if len(fixture.ExpectedResults) > 0 {
		fmt.Println("\nPASS")
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

// runDBMode replays a live database's decision history against the
// first recorded world model version, as forced actions. Useful for asking
// what the current stage configs would have done with the same history.
func runDBMode(dbPath string) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	start, err := rootTwin(st.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	interactions, err := recordedInteractions(st.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	if len(interactions) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return 2
	}

	harness, cleanup, err := newEphemeralHarness(replay.DefaultReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	defer cleanup()

	results, summary, err := harness.Replay(start, interactions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	printResults(results, summary)
	return 0
}

// rootTwin loads the earliest twin version, the one with no parent.
func rootTwin(db *sql.DB) (twin.Twin, error) {
	var twinJSON string
	err := db.QueryRow(
		`SELECT twin_json FROM twin_versions WHERE parent_id IS NULL ORDER BY created_at ASC LIMIT 1`,
	).Scan(&twinJSON)
	if err != nil {
		return twin.Twin{}, fmt.Errorf("find root version: %w", err)
	}

	var t twin.Twin
	if err := json.Unmarshal([]byte(twinJSON), &t); err != nil {
		return twin.Twin{}, fmt.Errorf("parse root version: %w", err)
	}
	return t, nil
}

func recordedInteractions(db *sql.DB) ([]replay.Interaction, error) {
	rows, err := db.Query(
		`SELECT decision_id, environment, action_id FROM decisions ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []replay.Interaction
	for rows.Next() {
		var inter replay.Interaction
		var actionID string
		if err := rows.Scan(&inter.CycleID, &inter.Environment, &actionID); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		inter.ForcedAction = policy.ActionID(actionID)
		out = append(out, inter)
	}
	return out, rows.Err()
}

// #endregion db-mode

// #region output

// newEphemeralHarness backs the policy memory with an in-memory database so
// a replay never writes learned estimates anywhere durable.
func newEphemeralHarness(config replay.ReplayConfig) (*replay.Harness, func(), error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("open scratch db: %w", err)
	}
	memory, err := policy.NewMemory(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open scratch memory: %w", err)
	}
	return replay.NewHarness(memory, config), func() { db.Close() }, nil
}

func printResults(results []replay.Result, summary replay.Summary) {
	fmt.Printf("%-12s  %-24s  %-8s  %-22s  %6s  %6s  %7s\n",
		"Cycle", "Action", "Mode", "Status", "Before", "After", "Reward")
	for _, r := range results {
		fmt.Printf("%-12s  %-24s  %-8s  %-22s  %6.1f  %6.1f  %7.2f\n",
			r.CycleID, r.Action.ID, r.Mode, r.Status,
			r.RiskBefore, r.RiskAfter, r.Reward.Value)
	}

	fmt.Printf("\ncycles=%d committed=%d policy_skips=%d simulation_skips=%d risk %.1f -> %.1f\n",
		summary.TotalCycles, summary.Committed, summary.PolicySkips, summary.SimulationSkips,
		summary.StartRisk, summary.FinalRisk)
}

// #endregion output
