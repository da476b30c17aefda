package hostconn

import (
	"context"
	"testing"

	"muxfleet/pkg/types"
)

func TestAssembleAuth_PasswordMethod(t *testing.T) {
	host := types.HostConfig{Auth: types.HostAuth{Password: "secret"}}
	methods, err := assembleAuth(host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected 1 auth method, got %d", len(methods))
	}
}

func TestAssembleAuth_NoneConfigured(t *testing.T) {
	methods, err := assembleAuth(types.HostConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 0 {
		t.Fatalf("expected no auth methods, got %d", len(methods))
	}
}

func TestRequiresNativeFallback(t *testing.T) {
	tests := []struct {
		name string
		host types.HostConfig
		want bool
	}{
		{
			name: "no jump host never needs fallback",
			host: types.HostConfig{Auth: types.HostAuth{Password: "x"}},
			want: false,
		},
		{
			name: "password auth through jump host needs fallback",
			host: types.HostConfig{
				Auth:     types.HostAuth{Password: "target-pw"},
				JumpHost: &types.HostConfig{Auth: types.HostAuth{UseAgent: true}},
			},
			want: true,
		},
		{
			name: "key-only jump chain uses library path",
			host: types.HostConfig{
				Auth:     types.HostAuth{PrivateKeyPath: "/keys/target"},
				JumpHost: &types.HostConfig{Auth: types.HostAuth{PrivateKeyPath: "/keys/jump"}},
			},
			want: false,
		},
		{
			name: "passphrase protected key through jump needs fallback",
			host: types.HostConfig{
				Auth:     types.HostAuth{UseAgent: true},
				JumpHost: &types.HostConfig{Auth: types.HostAuth{PrivateKeyPath: "/keys/jump", Passphrase: "pw"}},
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresNativeFallback(tt.host); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	got := shellQuote([]string{"tmux", "list-sessions", "-F", "it's fine"})
	want := `'tmux' 'list-sessions' '-F' 'it'\''s fine'`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestManager_ConnectUnknownHost(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Connect(context.Background(), "ghost")
	if err == nil {
		t.Fatalf("expected error for unknown host")
	}
}
