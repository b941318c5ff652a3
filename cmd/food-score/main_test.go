package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-score/internal/scoring"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asparagus.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"input": {"name": "asparagus", "source": "photo_item", "generic_slug": "asparagus"},
		"nutrients": {"fiber_g": 2, "sugar_g": 2, "sodium_mg": 2}
	}`), 0o600))
	t.Setenv("VITE_HEALTH_SCORE_V2", "true")

	out, err := execute(t, "", "score", "--log-level", "error", path)
	require.NoError(t, err)

	var res scoring.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, scoring.CurveWholeFood, res.Curve)
	assert.Equal(t, 92, res.Score100)

	out, err = execute(t, "", "score", "--log-level", "error", "--legacy", path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, scoring.CurveLegacy, res.Curve)
}

func TestClassifyCommandReadsStdin(t *testing.T) {
	out, err := execute(t, `{"name": "cola", "upc": "123"}`, "classify", "-")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "packaged"}`, out)

	_, err = execute(t, `not json`, "classify", "-")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "food-score version")
}
