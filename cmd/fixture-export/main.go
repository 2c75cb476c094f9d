package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hardening-controller/internal/replay"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
	"github.com/danielpatrickdp/hardening-controller/internal/twin"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to hardening.db")
	last := flag.Int("last", 10, "number of most recent cycles to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/hardening.db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

// run extracts the root world model plus the last N recorded cycles into a
// replay fixture, with each cycle's recorded terminal status pinned as an
// expectation.
func run(dbPath string, last int, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	db := st.DB()

	var rootJSON string
	err = db.QueryRow(
		`SELECT twin_json FROM twin_versions WHERE parent_id IS NULL ORDER BY created_at ASC LIMIT 1`,
	).Scan(&rootJSON)
	if err != nil {
		return fmt.Errorf("find root version: %w", err)
	}
	var start twin.Twin
	if err := json.Unmarshal([]byte(rootJSON), &start); err != nil {
		return fmt.Errorf("parse root version: %w", err)
	}

	// last N cycles, chronological
	rows, err := db.Query(
		`SELECT decision_id, environment, action_id, COALESCE(c.status, '') FROM (
			SELECT decision_id, environment, action_id, created_at FROM decisions
			ORDER BY created_at DESC LIMIT ?
		) d LEFT JOIN cycle_results c USING (decision_id)
		ORDER BY d.created_at ASC`, last,
	)
	if err != nil {
		return fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	fixture := replay.Fixture{
		Description: fmt.Sprintf("exported from %s", dbPath),
		StartModel:  &start,
		Environment: "sandbox",
	}

	for rows.Next() {
		var decisionID, environment, actionID, status string
		if err := rows.Scan(&decisionID, &environment, &actionID, &status); err != nil {
			return fmt.Errorf("scan cycle: %w", err)
		}
		fixture.Interactions = append(fixture.Interactions, replay.FixtureInteraction{
			CycleID:      decisionID,
			Environment:  environment,
			ForcedAction: actionID,
		})
		if status != "" {
			fixture.ExpectedResults = append(fixture.ExpectedResults, replay.FixtureExpectedResult{
				CycleID: decisionID,
				Status:  status,
				Action:  actionID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cycles: %w", err)
	}
	if len(fixture.Interactions) == 0 {
		return fmt.Errorf("no cycles found in %s", dbPath)
	}

	raw, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("exported %d cycles (%d expectations) to %s\n",
		len(fixture.Interactions), len(fixture.ExpectedResults), outPath)
	return nil
}

// #endregion export
