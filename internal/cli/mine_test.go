package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/engine"
)

func executeMine(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newMineCommand(&MineOptions{
		RootOptions: &RootOptions{Format: format},
		RunIDs:      engine.NewFixedGenerator("run-1"),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMineCommand(t *testing.T) {
	db := loadFamily(t)

	out, err := executeMine(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1 completed: 2 rule(s)")
	assert.Contains(t, out, "child: 5/5 facts entailed")
	assert.Contains(t, out, "child(X0,X1):-parent(X1,X0)  (τ=0.7143, +5/-0, coverage 100.00%)")
	assert.Contains(t, out, "parent(X0,X1):-child(X1,X0)")
}

func TestMineCommandJSON(t *testing.T) {
	db := loadFamily(t)

	out, err := executeMine(t, "json", "--db", db, "--relation", "parent")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		RunID  string            `json:"run_id"`
		Data   engine.RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, resp.Data.Relations, 1)
	rs := resp.Data.Relations[0]
	assert.Equal(t, "parent", rs.Relation)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "parent(X0,X1):-child(X1,X0)", rs.Rules[0].Rule)
	assert.Len(t, rs.Rules[0].Evidence, 5)
}

func TestMineCommandConfigAndFlags(t *testing.T) {
	db := loadFamily(t)

	out, err := executeMine(t, "text", "--db", db, "--config", "testdata/config",
		"--negatives", "none", "--metric", "τ", "--relation", "child")
	require.NoError(t, err)
	assert.Contains(t, out, "child(X0,X1):-parent(X1,X0)")
}

func TestMineCommandErrors(t *testing.T) {
	db := loadFamily(t)
	empty := filepath.Join(t.TempDir(), "empty.db")

	tests := []struct {
		name     string
		args     []string
		code     string
		exitCode int
	}{
		{"unknown relation", []string{"--db", db, "--relation", "sibling"}, ErrCodeUnknownRelation, ExitCommandError},
		{"invalid flag value", []string{"--db", db, "--beamwidth", "0"}, ErrCodeInvalidConfig, ExitFailure},
		{"bad config dir", []string{"--db", db, "--config", "testdata/unknown_field"}, ErrCodeUnknownField, ExitFailure},
		{"no kb", []string{"--db", empty}, ErrCodeNoKB, ExitCommandError},
		{"quota", []string{"--db", db, "--max-rules", "1"}, ErrCodeQuotaExceeded, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeMine(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}
