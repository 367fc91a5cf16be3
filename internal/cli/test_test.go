package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

func TestTestCommand_Scenarios(t *testing.T) {
	out, err := execute(t, "", "test", scenariosDir, "--golden", goldenDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ three-strikes")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "test", scenariosDir, "--golden", goldenDir, "--filter", "three-*")
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, "three-strikes", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_Update(t *testing.T) {
	golden := t.TempDir()
	_, err := execute(t, "", "test", scenariosDir, "--golden", golden, "--filter", "three-*", "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(golden, "three-strikes.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "three-strikes.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "three-strikes.golden"), []byte("{}"), 0644))

	out, err := execute(t, "", "test", scenariosDir, "--golden", golden, "--filter", "three-*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong-count
steps:
  - subscribe: [u1, u2]
assertions:
  - type: subscriber_count
    count: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong-count.yaml"), []byte(scenario), 0644))

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong-count")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "", "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
