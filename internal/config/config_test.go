package config

import (
	"testing"

	"muxfleet/pkg/types"
)

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		WebSocket: WebSocketConfig{Path: "/ws", HeartbeatMS: 30000},
		Discovery: DiscoveryConfig{PollMS: 2000},
		Hosts: []types.HostConfig{
			{ID: "local"},
			{ID: "box1", Hostname: "example.com", Port: 22, Username: "dev", Auth: types.HostAuth{UseAgent: true}},
		},
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_PollIntervalBoundary(t *testing.T) {
	tests := []struct {
		name    string
		pollMS  int
		wantErr bool
	}{
		{"exactly minimum accepted", 500, false},
		{"one below minimum rejected", 499, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Discovery.PollMS = tt.pollMS
			err := Validate(&cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for poll_ms=%d", tt.pollMS)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error for poll_ms=%d, got %v", tt.pollMS, err)
			}
		})
	}
}

func TestValidate_PortBoundary(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"port 1 accepted", 1, false},
		{"port 65535 accepted", 65535, false},
		{"port 0 rejected", 0, true},
		{"port 65536 rejected", 65536, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			err := Validate(&cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for port=%d", tt.port)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error for port=%d, got %v", tt.port, err)
			}
		})
	}
}

func TestValidate_DuplicateHostID(t *testing.T) {
	cfg := validConfig()
	cfg.Hosts = append(cfg.Hosts, types.HostConfig{ID: "box1", Hostname: "other.com", Port: 22, Username: "dev", Auth: types.HostAuth{UseAgent: true}})
	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("expected error for duplicate host id")
	}
}

func TestValidate_HostWithoutAuthRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Hosts = append(cfg.Hosts, types.HostConfig{ID: "box2", Hostname: "noauth.example.com", Port: 22, Username: "dev"})
	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("expected error for host with no effective auth method")
	}
}

func TestValidate_AuthEnabledRequiresSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Enabled = true
	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("expected error when auth enabled without secret")
	}
}

func TestResolvePassword_PrefersLiteral(t *testing.T) {
	auth := types.HostAuth{Password: "literal", PasswordEnvVar: "SOME_VAR_NOT_SET"}
	if got := ResolvePassword(auth); got != "literal" {
		t.Fatalf("expected literal password, got %q", got)
	}
}

func TestResolvePassword_FallsBackToEnvVar(t *testing.T) {
	t.Setenv("MUXFLEET_TEST_PW", "from-env")
	auth := types.HostAuth{PasswordEnvVar: "MUXFLEET_TEST_PW"}
	if got := ResolvePassword(auth); got != "from-env" {
		t.Fatalf("expected env-resolved password, got %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := ExpandHome("~/keys/id_rsa")
	want := home + "/keys/id_rsa"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
