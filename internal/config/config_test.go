package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp isolates a test from any .env file in the package directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	dir := chdirTemp(t)

	cfg, err := Load(filepath.Join(dir, "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, JudgeModeLive, cfg.Judge.Mode)
	assert.Equal(t, 30, cfg.Judge.TimeoutSeconds)
	assert.Equal(t, 500, cfg.Judge.MaxTokens)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Judge.Model)
	assert.False(t, cfg.Reward.ClampScore)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "proofmine.toml")
	body := `
[server]
addr = ":9090"

[judge]
mode = "mock"
timeout_seconds = 5

[reward]
clamp_score = true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, JudgeModeMock, cfg.Judge.Mode)
	assert.Equal(t, 5, cfg.Judge.TimeoutSeconds)
	assert.True(t, cfg.Reward.ClampScore)
	// untouched sections keep their defaults
	assert.Equal(t, 500, cfg.Judge.MaxTokens)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)

	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "claude key wins over anthropic key",
			env:  map[string]string{"CLAUDE_API_KEY": "sk-claude", "ANTHROPIC_API_KEY": "sk-anthropic"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-claude", cfg.Judge.APIKey)
			},
		},
		{
			name: "anthropic key alone",
			env:  map[string]string{"ANTHROPIC_API_KEY": "sk-anthropic"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-anthropic", cfg.Judge.APIKey)
			},
		},
		{
			name: "database url selects postgres",
			env:  map[string]string{"DATABASE_URL": "postgres://u:p@localhost/proofmine"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "postgres://u:p@localhost/proofmine", cfg.Database.DSN)
			},
		},
		{
			name: "port becomes listen addr",
			env:  map[string]string{"PORT": "7000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":7000", cfg.Server.Addr)
			},
		},
		{
			name: "judge mode is lowercased",
			env:  map[string]string{"JUDGE_MODE": "MOCK"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, JudgeModeMock, cfg.Judge.Mode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("JWT_SECRET") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown judge mode", func(c *Config) { c.Judge.Mode = "hybrid" }, true},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"memory driver", func(c *Config) { c.Database.Driver = "memory" }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "cassandra" }, true},
		{"negative timeout", func(c *Config) { c.Judge.TimeoutSeconds = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
