package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"muxfleet/pkg/types"
)

// MinPollIntervalMS is the lowest discovery poll interval the server accepts.
const MinPollIntervalMS = 500

// DefaultPollIntervalMS is used when the loaded configuration omits one.
const DefaultPollIntervalMS = 2000

// ServerConfig is the HTTP/WebSocket listen configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebSocketConfig configures the Client Fan-out Hub endpoint.
type WebSocketConfig struct {
	Path        string `yaml:"path"`
	HeartbeatMS int    `yaml:"heartbeat_ms"`
}

// DiscoveryConfig configures the Session Discovery Engine.
type DiscoveryConfig struct {
	PollMS              int    `yaml:"poll_ms"`
	IncludeNonAssistant bool   `yaml:"include_non_assistant"`
	AssistantCLIName    string `yaml:"assistant_cli_name"`
}

// AuthConfig is the auth flag plus the settings the collaborator that owns
// token issuance (internal/server's login and token verifier) reads: the
// signing secret, token lifetime, and operator credentials. The core never
// constructs or signs a token itself.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Secret       string `yaml:"secret"`
	TokenExpiryS int    `yaml:"token_expiry_s"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Config is the fully validated configuration the server is constructed
// from. Load (load.go) fills it from the YAML file, .env and environment
// overrides; Validate checks it.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Auth      AuthConfig       `yaml:"auth"`
	Hosts     []types.HostConfig `yaml:"hosts"`
}

// ConfigValidationError aggregates every configuration problem found so an
// operator sees the whole list instead of fixing one field at a time.
type ConfigValidationError struct {
	Problems []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ConfigValidationError) HasErrors() bool {
	return len(e.Problems) > 0
}

func (e *ConfigValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks every invariant the spec assigns to configuration
// loading: port ranges, unique host ids, at least one effective auth method
// per remote host, poll interval floor, and an auth secret when auth is
// enabled. It never mutates cfg.
func Validate(cfg *Config) error {
	verr := &ConfigValidationError{}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		verr.add("server.port %d out of range 1..65535", cfg.Server.Port)
	}
	if cfg.WebSocket.Path == "" {
		verr.add("websocket.path must not be empty")
	}
	if cfg.WebSocket.HeartbeatMS <= 0 {
		verr.add("websocket.heartbeat_ms must be positive")
	}
	if cfg.Discovery.PollMS < MinPollIntervalMS {
		verr.add("discovery.poll_ms %d below minimum %d", cfg.Discovery.PollMS, MinPollIntervalMS)
	}
	if cfg.Auth.Enabled {
		if strings.TrimSpace(cfg.Auth.Secret) == "" {
			verr.add("auth.secret is required when auth.enabled is true")
		} else if err := validateAuthSecret(cfg.Auth.Secret); err != nil {
			verr.add("auth.secret: %s", err)
		}
	}

	seenIDs := make(map[string]bool, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		if h.ID == "" {
			verr.add("hosts[%d]: id is required", i)
			continue
		}
		if seenIDs[h.ID] {
			verr.add("hosts[%d]: duplicate id %q", i, h.ID)
		}
		seenIDs[h.ID] = true

		if h.IsLocal() {
			continue
		}
		if h.Hostname == "" {
			verr.add("hosts[%s]: hostname is required", h.ID)
		}
		if h.Port < 1 || h.Port > 65535 {
			verr.add("hosts[%s]: port %d out of range 1..65535", h.ID, h.Port)
		}
		if h.Username == "" {
			verr.add("hosts[%s]: username is required", h.ID)
		}
		if !hasEffectiveAuth(h) {
			verr.add("hosts[%s]: no effective auth method (password, private key, or agent)", h.ID)
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// hasEffectiveAuth mirrors the Host Connection Manager's own auth-assembly
// priority: password/password_env_var, then private key, then agent.
func hasEffectiveAuth(h types.HostConfig) bool {
	if h.Auth.Password != "" || h.Auth.PasswordEnvVar != "" {
		return true
	}
	if h.Auth.PrivateKeyPath != "" {
		return true
	}
	if h.Auth.UseAgent {
		return true
	}
	return false
}

// ApplyDefaults fills in zero-valued optional fields with the documented
// defaults. Called after loading, before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg.Discovery.PollMS == 0 {
		cfg.Discovery.PollMS = DefaultPollIntervalMS
	}
	if cfg.WebSocket.Path == "" {
		cfg.WebSocket.Path = "/ws"
	}
	if cfg.WebSocket.HeartbeatMS == 0 {
		cfg.WebSocket.HeartbeatMS = 30000
	}
	for i := range cfg.Hosts {
		if cfg.Hosts[i].Port == 0 {
			cfg.Hosts[i].Port = 22
		}
	}
}

// ResolvePassword returns a host's effective password, resolving
// password_env_var when the literal password is empty.
func ResolvePassword(auth types.HostAuth) string {
	if auth.Password != "" {
		return auth.Password
	}
	if auth.PasswordEnvVar != "" {
		return os.Getenv(auth.PasswordEnvVar)
	}
	return ""
}

// ResolvePassphrase mirrors ResolvePassword for private key passphrases.
func ResolvePassphrase(auth types.HostAuth) string {
	if auth.Passphrase != "" {
		return auth.Passphrase
	}
	if auth.PassphraseEnvVar != "" {
		return os.Getenv(auth.PassphraseEnvVar)
	}
	return ""
}

// ExpandHome expands a leading "~" against the user's home directory, the
// one path-mechanics concern the spec assigns to the core rather than the
// configuration-loading collaborator.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
