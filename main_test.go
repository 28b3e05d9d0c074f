package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/proofmine/internal/config"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/verify"
	"github.com/hazyhaar/proofmine/pkg/audit"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestRunVerifyMock(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JUDGE_MODE", "mock")
	cfgPath := writeFile(t, dir, "proofmine.toml", "[log]\nlevel = \"error\"\n")
	taskPath := writeFile(t, dir, "task.json", `{
		"task_type": "evaluation",
		"instructions": {"description": "Calculate 2+2+2+2"},
		"verification_criteria": {"correct_answer": 8}
	}`)
	outPath := writeFile(t, dir, "output.json", `{"answer": 8}`)

	var buf bytes.Buffer
	require.NoError(t, runVerify(context.Background(), cfgPath, taskPath, outPath, &buf))

	var res verify.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.True(t, res.IsValid)
	assert.Equal(t, verify.MockScore, res.AIScore)
	assert.Equal(t, verify.ModeMock, res.Mode)
}

func TestRunVerifyBadInput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JUDGE_MODE", "mock")
	cfgPath := writeFile(t, dir, "proofmine.toml", "")
	taskPath := writeFile(t, dir, "task.json", `not json`)
	outPath := writeFile(t, dir, "output.json", `{}`)

	err := runVerify(context.Background(), cfgPath, taskPath, outPath, &bytes.Buffer{})
	assert.ErrorContains(t, err, "parsing")

	err = runVerify(context.Background(), cfgPath, filepath.Join(dir, "missing.json"), outPath, &bytes.Buffer{})
	assert.ErrorContains(t, err, "reading")
}

func TestBuildAppSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Judge.Mode = config.JudgeModeMock
	cfg.Database.Path = filepath.Join(dir, "data", "proofmine.db")

	a, err := buildApp(context.Background(), cfg, setupLogger(config.LogConfig{Level: "error"}))
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.store.(*db.DB)
	assert.True(t, ok)
	require.NotNil(t, a.metricsDB)
	_, ok = a.auditLog.(*audit.SQLiteLogger)
	assert.True(t, ok)
	assert.Equal(t, verify.ModeMock, a.manager.Mode())
	assert.FileExists(t, filepath.Join(dir, "data", "metrics.db"))
}

func TestBuildAppMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Judge.Mode = config.JudgeModeMock
	cfg.Database.Driver = "memory"
	cfg.Audit.Enabled = false

	a, err := buildApp(context.Background(), cfg, setupLogger(config.LogConfig{Level: "error"}))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.metricsDB)
	assert.IsType(t, audit.Nop{}, a.auditLog)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "proofmine dev\n", buf.String())
}
