package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/drel/internal/value"
)

// checkExpectation compares the result against the expectation and
// records every mismatch on the result.
func checkExpectation(r *Result, want Expectation) {
	if want.Error != "" {
		switch r.Outcome {
		case want.Error:
		case "":
			r.AddError(fmt.Sprintf("expected error %s, query succeeded", want.Error))
		default:
			r.AddError(fmt.Sprintf("expected error %s, got %s", want.Error, r.Outcome))
		}
		return
	}
	if r.Outcome != "" {
		r.AddError(fmt.Sprintf("unexpected error: %s", r.Outcome))
		return
	}

	if !slices.Equal(r.Columns, want.Columns) {
		r.AddError(fmt.Sprintf("columns: expected %v, got %v", want.Columns, r.Columns))
	}

	if len(r.Rows) != len(want.Rows) {
		r.AddError(fmt.Sprintf("rows: expected %d, got %d", len(want.Rows), len(r.Rows)))
		return
	}
	for i := range want.Rows {
		if err := compareRow(want.Rows[i], r.Rows[i]); err != nil {
			r.AddError(fmt.Sprintf("rows[%d]: %v", i, err))
		}
	}
}

// compareRow compares values by canonical form, so an int from YAML
// matches an int64 from the driver and a time matches its RFC 3339 text.
func compareRow(want, got []any) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		w, err := value.MarshalCanonical(want[i])
		if err != nil {
			return fmt.Errorf("[%d]: expected value: %w", i, err)
		}
		g, err := value.MarshalCanonical(got[i])
		if err != nil {
			return fmt.Errorf("[%d]: returned value: %w", i, err)
		}
		if string(w) != string(g) {
			return fmt.Errorf("[%d]: expected %s, got %s", i, w, g)
		}
	}
	return nil
}
