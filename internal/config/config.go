// CLAUDE:SUMMARY TOML configuration with .env loading and environment overrides for server, storage, auth, judge, reward, logging
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Judge    JudgeConfig    `toml:"judge"`
	Reward   RewardConfig   `toml:"reward"`
	Log      LogConfig      `toml:"log"`
	Audit    AuditConfig    `toml:"audit"`
}

type ServerConfig struct {
	Addr                string   `toml:"addr"`
	CORSOrigins         []string `toml:"cors_origins"`
	SubmitRateLimit     int      `toml:"submit_rate_limit"`
	SubmitRateWindowSec int      `toml:"submit_rate_window_sec"`
}

// DatabaseConfig selects the storage backend. Driver is one of
// "sqlite", "postgres" or "memory".
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type AuthConfig struct {
	JWTSecret      string `toml:"jwt_secret"`
	TokenExpiryMin int    `toml:"token_expiry_min"`
	DevTokens      bool   `toml:"dev_tokens"`
}

// JudgeConfig configures the external AI judge. Mode is "live" or "mock"
// and is fixed for the lifetime of the process.
type JudgeConfig struct {
	Mode           string `toml:"mode"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

type RewardConfig struct {
	ClampScore bool `toml:"clamp_score"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuditConfig struct {
	Enabled bool `toml:"enabled"`
}

const (
	JudgeModeLive = "live"
	JudgeModeMock = "mock"
)

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8000",
			CORSOrigins:         []string{"*"},
			SubmitRateLimit:     30,
			SubmitRateWindowSec: 60,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/proofmine.db",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Judge: JudgeConfig{
			Mode:           JudgeModeLive,
			Model:          "claude-3-5-sonnet-20241022",
			TimeoutSeconds: 30,
			MaxTokens:      500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
	}
}

// Load reads the TOML file at path (a missing file yields defaults), then
// a .env file in the working directory, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := firstEnv("CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
		c.Judge.APIKey = v
	}
	if v := os.Getenv("JUDGE_MODE"); v != "" {
		c.Judge.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("JUDGE_MODEL"); v != "" {
		c.Judge.Model = v
	}
	if v := os.Getenv("JUDGE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JUDGE_TIMEOUT_SECONDS: %w", err)
		}
		c.Judge.TimeoutSeconds = n
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
		if os.Getenv("DATABASE_DRIVER") == "" {
			c.Database.Driver = "postgres"
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	} else if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate rejects values the rest of the process cannot run with.
func (c *Config) Validate() error {
	switch c.Judge.Mode {
	case JudgeModeLive, JudgeModeMock:
	default:
		return fmt.Errorf("judge.mode must be %q or %q, got %q", JudgeModeLive, JudgeModeMock, c.Judge.Mode)
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Judge.TimeoutSeconds < 0 {
		return fmt.Errorf("judge.timeout_seconds must not be negative")
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
