// Package types holds the domain model shared across the terminal
// aggregator's components: hosts, connections, sessions, workspaces,
// and the two flat to-do/backlog entities.
package types

import "time"

// ConnState is the runtime lifecycle state of a Host Connection Manager entry.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnError        ConnState = "error"
)

// SessionStatus is the lifecycle state of a discovered terminal session.
type SessionStatus string

const (
	SessionActive       SessionStatus = "active"
	SessionIdle         SessionStatus = "idle"
	SessionDisconnected SessionStatus = "disconnected"
	SessionTerminated   SessionStatus = "terminated"
)

// AssistantOperationStatus classifies what an AI-assistant session is doing,
// inferred by internal/classify from terminal output, never set directly.
type AssistantOperationStatus string

const (
	AssistantThinking         AssistantOperationStatus = "thinking"
	AssistantWaitingForInput  AssistantOperationStatus = "waiting_for_input"
	AssistantError            AssistantOperationStatus = "error"
	AssistantIdle             AssistantOperationStatus = "idle"
)

// HostAuth carries every auth parameter a Host may configure; the Host
// Connection Manager assembles effective auth methods from whichever of
// these are non-empty, trying them in the priority order documented on
// HostConfig.
type HostAuth struct {
	Password         string `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordEnvVar   string `json:"password_env_var,omitempty" yaml:"password_env_var,omitempty"`
	PrivateKeyPath   string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	Passphrase       string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	PassphraseEnvVar string `json:"passphrase_env_var,omitempty" yaml:"passphrase_env_var,omitempty"`
	UseAgent         bool   `json:"use_agent,omitempty" yaml:"use_agent,omitempty"`
}

// HostConfig is one configured host. "local" is a reserved id meaning the
// machine the server runs on; it carries no auth and is never connected
// to via SSH.
type HostConfig struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Hostname string      `json:"hostname" yaml:"hostname"`
	Port     int         `json:"port" yaml:"port"`
	Username string      `json:"username" yaml:"username"`
	Auth     HostAuth    `json:"auth" yaml:"auth"`
	JumpHost *HostConfig `json:"jump_host,omitempty" yaml:"jump_host,omitempty"`
}

// IsLocal reports whether this host is the reserved local pseudo-host.
func (h HostConfig) IsLocal() bool { return h.ID == "local" }

// MuxCoordinates locates a pane within the external multiplexer.
type MuxCoordinates struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	PaneID      string `json:"pane_id"`
	WindowIndex int    `json:"window_index"`
}

// ProcessInfo describes the foreground process attached to a pane.
type ProcessInfo struct {
	PID            int    `json:"pid"`
	CurrentCommand string `json:"current_command"`
}

// Dimensions is a terminal's column/row size.
type Dimensions struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Enrichment carries the best-effort metadata the Discovery Engine attaches
// to a pane. Any field may be the zero value when enrichment was skipped
// or timed out.
type Enrichment struct {
	LastOutputLine           string                   `json:"last_output_line,omitempty"`
	StatusBar                string                   `json:"status_bar,omitempty"`
	ConversationSummary      string                   `json:"conversation_summary,omitempty"`
	UserLastInput            string                   `json:"user_last_input,omitempty"`
	AssistantOperationStatus AssistantOperationStatus `json:"assistant_operation_status,omitempty"`
}

// Session is one discovered, system-addressable terminal.
type Session struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	HostID            string         `json:"host_id"`
	HostName          string         `json:"host_name"`
	Mux               MuxCoordinates `json:"mux"`
	Status            SessionStatus  `json:"status"`
	IsAssistantSession bool          `json:"is_assistant_session"`
	Process           ProcessInfo    `json:"process"`
	CreatedAt         time.Time      `json:"created_at"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
	Dimensions        Dimensions     `json:"dimensions"`
	WorkingDirectory  string         `json:"working_directory"`
	WorkspaceID       *string        `json:"workspace_id"`
	Enrichment        Enrichment     `json:"enrichment"`
}

// Workspace groups sessions under a user-defined name.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Hidden      bool      `json:"hidden"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Todo is a workspace-scoped checklist item.
type Todo struct {
	ID          string    `json:"id"`
	WorkspaceID *string   `json:"workspace_id"`
	Text        string    `json:"text"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BacklogItem is a global, un-workspaced planning entry.
type BacklogItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const MaxWorkspaceNameLen = 50
