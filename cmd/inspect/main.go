package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to hardening.db")
	last := flag.Int("last", 20, "show N most recent cycles")
	decision := flag.String("decision", "", "show the full trace for one decision id")
	estimates := flag.Bool("estimates", false, "show learned action estimates")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/hardening.db [--last N] [--decision id] [--estimates] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *decision != "":
		err = runTraceMode(st, *decision)
	case *estimates:
		err = runEstimatesMode(st, *jsonOut)
	default:
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(st *store.Store, last int, jsonOut bool) error {
	cycles, err := st.ListCycles(last)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(os.Stderr, "no cycles found")
		return nil
	}

	if jsonOut {
		return printJSON(cycles)
	}

	fmt.Printf("%-36s  %-24s  %-8s  %-22s  %6s  %6s  %7s  %s\n",
		"Decision", "Action", "Mode", "Status", "Before", "After", "Reward", "Time")
	for _, c := range cycles {
		fmt.Printf("%-36s  %-24s  %-8s  %-22s  %6.1f  %6.1f  %7.2f  %s\n",
			c.DecisionID, c.ActionID, c.Mode, c.Status,
			c.BeforeRisk, c.AfterRisk, c.Reward,
			c.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region trace-mode

// runTraceMode dumps the full artifact trail for one decision as JSON;
// traces are nested enough that a table stops being readable.
func runTraceMode(st *store.Store, decisionID string) error {
	trace, err := st.Trace(decisionID)
	if err != nil {
		return err
	}
	return printJSON(trace)
}

// #endregion trace-mode

// #region estimates-mode

type estimateRow struct {
	ActionID string  `json:"action_id"`
	Estimate float64 `json:"estimate"`
	Count    int     `json:"count"`
}

func runEstimatesMode(st *store.Store, jsonOut bool) error {
	memory, err := policy.NewMemory(st.DB())
	if err != nil {
		return err
	}

	ests, err := memory.Estimates(policy.PriorityOrder, 0)
	if err != nil {
		return err
	}

	rows := make([]estimateRow, 0, len(ests))
	for id, e := range ests {
		rows = append(rows, estimateRow{ActionID: string(id), Estimate: e.Value, Count: e.Count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Estimate > rows[j].Estimate })

	if jsonOut {
		return printJSON(rows)
	}

	updates, err := memory.Updates()
	if err != nil {
		return err
	}
	fmt.Printf("total policy updates: %d\n\n", updates)
	fmt.Printf("%-24s  %9s  %6s\n", "Action", "Estimate", "Count")
	for _, r := range rows {
		fmt.Printf("%-24s  %9.3f  %6d\n", r.ActionID, r.Estimate, r.Count)
	}
	return nil
}

// #endregion estimates-mode

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
