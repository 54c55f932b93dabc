package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/engine"
)

func executeRules(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRulesCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func minedFamily(t *testing.T) string {
	t.Helper()
	db := loadFamily(t)
	_, err := executeMine(t, "text", "--db", db)
	require.NoError(t, err)
	return db
}

func TestRulesCommandLatestRun(t *testing.T) {
	db := minedFamily(t)

	out, err := executeRules(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1 (completed, kb family): 2 rule(s)")
	assert.Contains(t, out, "  1  child(X0,X1):-parent(X1,X0)")
	assert.Contains(t, out, "  2  parent(X0,X1):-child(X1,X0)")
	assert.NotContains(t, out, "evidence")
}

func TestRulesCommandEvidence(t *testing.T) {
	db := minedFamily(t)

	out, err := executeRules(t, "text", "--db", db, "--run", "run-1", "--relation", "parent", "--evidence")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rule(s)")
	assert.Equal(t, 5, strings.Count(out, "evidence ["))
	assert.NotContains(t, out, "counterexample")
}

func TestRulesCommandJSON(t *testing.T) {
	db := minedFamily(t)

	out, err := executeRules(t, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Rules []engine.RuleRecord `json:"rules"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Rules, 2)
	assert.Equal(t, int64(1), resp.Data.Rules[0].Seq)
	assert.Empty(t, resp.Data.Rules[0].Evidence)
}

func TestRulesCommandRunNotFound(t *testing.T) {
	db := loadFamily(t)

	out, err := executeRules(t, "text", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E206]")
}
