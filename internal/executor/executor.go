package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
)

// #region contract

// Outcome records whether the change backend applied a change set.
type Outcome struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

// Executor is the change-execution backend contract: given a mapping of
// dotted twin paths to new values, apply them to real infrastructure. On
// failure the caller must roll the twin back to its pre-commit version.
type Executor interface {
	Apply(ctx context.Context, changes map[string]interface{}) Outcome
}

// #endregion contract

// #region journal

// Journal is the default backend: it records every applied change set and
// reports success. Real enforcement backends (firewall APIs, IAM writers)
// satisfy the same interface.
type Journal struct {
	applied []map[string]interface{}
}

// NewJournal creates an empty journal executor.
func NewJournal() *Journal {
	return &Journal{}
}

// Apply implements Executor by logging the change set.
func (j *Journal) Apply(_ context.Context, changes map[string]interface{}) Outcome {
	j.applied = append(j.applied, changes)

	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		val, _ := json.Marshal(changes[p])
		log.Printf("[EXEC] apply %s = %s", p, val)
	}

	return Outcome{
		Success: true,
		Detail:  fmt.Sprintf("journaled %d changes", len(changes)),
	}
}

// Applied returns every change set applied so far.
func (j *Journal) Applied() []map[string]interface{} {
	return j.applied
}

// #endregion journal

// #region failing

// Failing rejects every change set. Test double for rollback paths.
type Failing struct {
	Detail string
}

// Apply implements Executor.
func (f Failing) Apply(_ context.Context, _ map[string]interface{}) Outcome {
	detail := f.Detail
	if detail == "" {
		detail = "backend rejected change"
	}
	return Outcome{Success: false, Detail: detail}
}

// #endregion failing
