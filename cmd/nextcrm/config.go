package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultBaseURL = "http://localhost:8000"

// fileConfig is the YAML config file: the client configuration plus the
// settings only the CLI uses.
type fileConfig struct {
	nextcrm.Config `yaml:",inline"`
	CLI            cliConfig `yaml:"cli"`
}

type cliConfig struct {
	StateDir  string `yaml:"state_dir"`
	RedisAddr string `yaml:"redis_addr"`
	SessionID string `yaml:"session_id"`
	Username  string `yaml:"username"`
}

// loadConfig layers defaults, the YAML file, then NEXTCRM_* variables. The
// dotenv file only fills variables that are not already set.
func loadConfig(path, envPath string) (fileConfig, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, fmt.Errorf("load env (%s): %w", envPath, err)
		}
	}

	cfg := fileConfig{Config: nextcrm.DefaultConfig(defaultBaseURL)}
	if path == "" {
		path = os.Getenv("NEXTCRM_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fileConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return fileConfig{}, err
	}

	if cfg.CLI.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.CLI.StateDir = filepath.Join(dir, "nextcrm")
	}
	if cfg.CLI.SessionID == "" {
		cfg.CLI.SessionID = "cli"
	}
	return cfg, nil
}

func applyEnv(cfg *fileConfig) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("NEXTCRM_BASE_URL", &cfg.Gateway.BaseURL)
	str("NEXTCRM_STATE_DIR", &cfg.CLI.StateDir)
	str("NEXTCRM_REDIS_ADDR", &cfg.CLI.RedisAddr)
	str("NEXTCRM_SESSION_ID", &cfg.CLI.SessionID)
	str("NEXTCRM_USERNAME", &cfg.CLI.Username)
	if err := dur("NEXTCRM_REQUEST_TIMEOUT", &cfg.Gateway.RequestTimeout); err != nil {
		return err
	}
	return dur("NEXTCRM_REFRESH_TIMEOUT", &cfg.Gateway.RefreshTimeout)
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, cfg *fileConfig) {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Gateway.BaseURL = baseURL
	}
	if flags.Changed("state-dir") {
		cfg.CLI.StateDir = stateDir
	}
	if flags.Changed("redis-addr") {
		cfg.CLI.RedisAddr = redisAddr
	}
	if flags.Changed("session-id") {
		cfg.CLI.SessionID = sessionID
	}
}
