package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunSuite_Testdata(t *testing.T) {
	result, err := RunSuite(filepath.Join("testdata", "scenarios"), GoldenDir, false)
	require.NoError(t, err)

	assert.Equal(t, result.TotalScenarios, result.Passed, "failures: %+v", result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: asserts a pending alert that is not there
steps:
  - op: save
    ref: rent
    title: ""
assertions:
  - type: pending_alerts
    count: 1
`), 0o644))

	result, err := RunSuite(dir, "", false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "wrong", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}

func TestRunSuite_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(t.TempDir(), "golden")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "minimal.yaml"), []byte(minimalScenario), 0o644))

	result, err := RunSuite(dir, goldenDir, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Passed)

	written, err := os.ReadFile(filepath.Join(goldenDir, "minimal.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "scenario: minimal")

	result, err = RunSuite(dir, goldenDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "minimal.golden"), []byte("stale\n"), 0o644))
	result, err = RunSuite(dir, goldenDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Failures[0].Error, "does not match")
}
