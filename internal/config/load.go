package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file at path (if present), layers a
// handful of environment variable overrides on top — the knobs an operator
// typically flips per-deployment without editing the file — applies
// defaults, and validates the result. A missing file is not an error: the
// server can run entirely off environment variables and defaults.
//
// .env is loaded into the process environment first (via godotenv) so the
// overrides below and any secret env vars a host's auth references
// (password_env_var, passphrase_env_var) are already in place.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MUXFLEET_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := getEnvInt("MUXFLEET_PORT"); v != 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("MUXFLEET_WS_PATH"); v != "" {
		cfg.WebSocket.Path = v
	}
	if v := getEnvInt("MUXFLEET_POLL_MS"); v != 0 {
		cfg.Discovery.PollMS = v
	}
	if v := os.Getenv("MUXFLEET_ASSISTANT_CLI_NAME"); v != "" {
		cfg.Discovery.AssistantCLIName = v
	}
	if v := os.Getenv("MUXFLEET_AUTH_SECRET"); v != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = v
	}
}

func getEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
