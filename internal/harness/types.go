package harness

// Result is the outcome of a test scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall test success.
	// True if the outcome matches the expectation.
	Pass bool `json:"pass"`

	// SQL, Params and Columns are the compiled statement. Empty when the
	// query failed to build.
	SQL     string   `json:"sql,omitempty"`
	Params  []any    `json:"params"`
	Columns []string `json:"columns"`

	// Rows holds the returned rows in result order.
	Rows [][]any `json:"rows"`

	// Outcome is the error code the query failed with, if any.
	Outcome string `json:"outcome,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(name string) *Result {
	return &Result{
		Name:    name,
		Pass:    true,
		Params:  []any{},
		Columns: []string{},
		Rows:    [][]any{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
