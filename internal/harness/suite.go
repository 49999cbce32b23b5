package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover returns the scenario files (*.yaml, *.yml) directly inside dir,
// sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}

	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Paths          []string          `json:"paths"` // every scenario run, in order
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents one failed scenario.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Scenario     string `json:"scenario,omitempty"`
	Error        string `json:"error"`
}

// RunSuite loads and runs every scenario in dir.
//
// When goldenDir is non-empty, each scenario's trace is compared with
// goldenDir/{name}.golden if that file exists. With update set, the golden
// file is written instead.
func RunSuite(dir, goldenDir string, update bool) (*SuiteResult, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Paths: paths}
	for _, path := range paths {
		result.TotalScenarios++

		fail := func(name, format string, args ...any) {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Scenario:     name,
				Error:        fmt.Sprintf(format, args...),
			})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail("", "failed to load scenario: %v", err)
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			fail(scenario.Name, "scenario execution failed: %v", err)
			continue
		}

		if !runResult.Pass {
			fail(scenario.Name, "scenario assertions failed: %v", runResult.Errors)
			continue
		}

		if goldenDir != "" {
			if err := checkGolden(goldenDir, scenario.Name, runResult, update); err != nil {
				fail(scenario.Name, "%v", err)
				continue
			}
		}

		result.Passed++
	}

	return result, nil
}

func checkGolden(dir, name string, result *Result, update bool) error {
	path := filepath.Join(dir, name+".golden")
	actual := FormatTrace(name, result)

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if string(expected) != actual {
		return fmt.Errorf("trace does not match %s", path)
	}
	return nil
}
