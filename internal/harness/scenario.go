package harness

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/drel/internal/querydoc"
)

// Scenario defines one query test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a YAML schema file, a CUE file, or a directory of CUE
	// files. Relative paths are resolved against the scenario file.
	// If empty, tables are introspected after Setup.
	Schema string `yaml:"schema,omitempty"`

	// Setup is a SQL script run against the fresh database.
	Setup string `yaml:"setup"`

	// Query is the query under test.
	Query querydoc.Document `yaml:"query"`

	// Expect is the expected outcome.
	Expect Expectation `yaml:"expect"`

	// ExecID is the execution id stamped on the run. Defaults to
	// "test-exec-default" so golden snapshots are stable.
	ExecID string `yaml:"exec_id,omitempty"`
}

// Expectation is what a scenario's query must produce.
type Expectation struct {
	// Columns are the expected output names, in order.
	Columns []string `yaml:"columns,omitempty"`

	// Rows are the expected rows in result order.
	Rows [][]any `yaml:"rows,omitempty"`

	// One runs the query with One; Rows then holds the single row, or is
	// empty when NoResult is expected.
	One bool `yaml:"one,omitempty"`

	// Error is the expected query error code or cardinality error
	// (NO_RESULT, MULTIPLE_RESULTS). When set, Columns and Rows are
	// not checked.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(fs afero.Fs, path string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(fs, &scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(fs afero.Fs, s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Schema != "" {
		if _, err := fs.Stat(s.Schema); err != nil {
			return fmt.Errorf("schema not found: %s", s.Schema)
		}
	}
	if err := s.Query.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if s.Expect.Error == "" && len(s.Expect.Columns) == 0 {
		return errors.New("expect: columns or error is required")
	}
	if s.Expect.One && len(s.Expect.Rows) > 1 {
		return errors.New("expect: one allows at most one row")
	}
	for i, row := range s.Expect.Rows {
		if len(s.Expect.Columns) > 0 && len(row) != len(s.Expect.Columns) {
			return fmt.Errorf("expect.rows[%d]: %d values for %d columns", i, len(row), len(s.Expect.Columns))
		}
	}
	return nil
}
