package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/drel/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Run query scenarios",
		Long: `Run scenario files with the harness.

Each scenario loads a schema, runs its setup SQL on a fresh in-memory
SQLite database, builds and runs its query, and checks the expected
columns, rows, or error. When golden/<name>.golden exists next to a
scenario, the compiled SQL, params, and rows must also match it.

The directory defaults to scenarios in the config file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  drel test ./testdata/scenarios
  drel test ./testdata/scenarios --filter "posts_*"
  drel test ./testdata/scenarios --update
  drel test --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.config().Scenarios
			if len(args) == 1 {
				dir = args[0]
			}
			return runTests(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	fs := opts.fs()

	if dir == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no scenarios directory: pass one or set scenarios in drel.yaml", nil)
	}
	if _, err := fs.Stat(dir); os.IsNotExist(err) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	files, err := harness.FindScenarios(fs, dir, opts.Filter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to find scenarios", err)
	}

	h := harness.New(harness.WithFs(fs), harness.WithLogger(opts.logger()))
	suite := h.RunSuite(cmd.Context(), files)

	// Golden snapshots are checked after the assertions.
	suite.Passed, suite.Failed = 0, 0
	for i := range suite.Scenarios {
		sr := &suite.Scenarios[i]
		if sr.Result != nil {
			checkGolden(fs, sr, opts.Update)
		}
		if sr.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, suite)
	}
	return outputTestText(formatter, suite)
}

// checkGolden compares or rewrites the scenario's golden file and records
// any problem on sr.
func checkGolden(fs afero.Fs, sr *harness.ScenarioResult, update bool) {
	data, err := harness.Snapshot(sr.Result)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to snapshot result: %v", err))
		return
	}
	path := goldenFilePath(sr.Path)

	if update {
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			return
		}
		if err := afero.WriteFile(fs, path, data, 0644); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return
	}

	golden, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		// No golden file - assertion-based validation only
		return
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(bytes.TrimSpace(golden), data) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, suite *harness.SuiteResult) error {
	response := CLIResponse{Status: "ok", Data: suite}
	if suite.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", suite.Failed),
		}
	}
	if err := formatter.encode(response); err != nil {
		return err
	}

	if suite.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, suite *harness.SuiteResult) error {
	w := formatter.Writer

	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, sr := range suite.Scenarios {
		fmt.Fprintf(w, "%s %s\n", formatter.Mark(sr.Pass), sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		if formatter.Verbose && sr.Result != nil && sr.Result.SQL != "" {
			fmt.Fprintf(w, "  sql: %s\n", sr.Result.SQL)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)

	if suite.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", formatter.Mark(true))
	return nil
}
