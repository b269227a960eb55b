package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ScenarioResult is one scenario's entry in a suite run.
type ScenarioResult struct {
	Path   string   `json:"path"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// Result is nil if the scenario failed to load or run.
	Result *Result `json:"-"`
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// FindScenarios returns the YAML files under dir, sorted. A non-empty
// filter is a glob matched against the file name without its extension.
func FindScenarios(fs afero.Fs, dir, filter string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// RunSuite loads and runs every scenario file. A scenario that fails to
// load or run counts as failed; the suite always runs to the end.
func (h *Harness) RunSuite(ctx context.Context, paths []string) *SuiteResult {
	suite := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Total:     len(paths),
	}

	for _, path := range paths {
		sr := h.runFile(ctx, path)
		if sr.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, sr)
	}
	return suite
}

func (h *Harness) runFile(ctx context.Context, path string) ScenarioResult {
	sr := ScenarioResult{Path: path, Name: filepath.Base(path)}

	scenario, err := LoadScenario(h.fs, path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := h.Run(ctx, scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	sr.Result = result
	sr.Pass = result.Pass
	sr.Errors = result.Errors
	return sr
}
