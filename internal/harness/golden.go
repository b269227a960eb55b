package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/drel/internal/value"
)

// Snapshot returns the canonical JSON form of a result: the compiled
// statement, the rows, and the error outcome. Pass and Errors are left
// out; the snapshot records behavior, not the verdict.
func Snapshot(r *Result) ([]byte, error) {
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = row
	}
	m := map[string]any{
		"scenario_name": r.Name,
		"sql":           r.SQL,
		"params":        r.Params,
		"columns":       r.Columns,
		"rows":          rows,
	}
	if r.Outcome != "" {
		m["outcome"] = r.Outcome
	}
	return value.MarshalCanonical(m)
}

// SnapshotFingerprint hashes a result snapshot.
func SnapshotFingerprint(r *Result) (string, error) {
	data, err := Snapshot(r)
	if err != nil {
		return "", err
	}
	return value.HashWithDomain(value.DomainSnapshot, data), nil
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
