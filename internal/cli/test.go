package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remindsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	GoldenDir string // golden trace directory; empty skips trace comparison
	Update    bool   // regenerate golden files
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r TestResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 && r.Total > 0 {
		b.WriteString("\n✓ All scenarios passed")
	}
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run sync scenarios against in-memory services",
		Long: `Run YAML sync scenarios against recording in-memory alert and calendar
services. Each scenario's assertions are checked; with --golden its call trace
is also compared with <golden-dir>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  remindsync test ./scenarios
  remindsync test ./scenarios --golden ./golden
  remindsync test ./scenarios --golden ./golden --update
  remindsync test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden trace directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	suite, err := harness.RunSuite(scenariosDir, opts.GoldenDir, opts.Update)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	result := toTestResult(suite)
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := out.Result(result, &CLIError{Code: CodeTestFailed, Message: msg}); err != nil {
			return err
		}
		// Test failures = exit code 1
		return NewExitError(ExitFailure, msg)
	}
	if result.Total == 0 && opts.Format != "json" {
		return out.Success("No scenarios found.")
	}
	return out.Success(result)
}

// toTestResult lists every discovered scenario with its outcome.
func toTestResult(suite *harness.SuiteResult) TestResult {
	failures := make(map[string]harness.ScenarioFailure, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.ScenarioPath] = f
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, suite.TotalScenarios),
		Passed:    suite.Passed,
		Failed:    suite.Failed,
		Total:     suite.TotalScenarios,
	}
	for _, path := range suite.Paths {
		name := scenarioName(path)
		f, failed := failures[path]
		if !failed {
			result.Scenarios = append(result.Scenarios, ScenarioResult{Name: name, Path: path, Pass: true})
			continue
		}
		if f.Scenario != "" {
			name = f.Scenario
		}
		result.Scenarios = append(result.Scenarios, ScenarioResult{
			Name:   name,
			Path:   path,
			Errors: []string{f.Error},
		})
	}
	return result
}

func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
