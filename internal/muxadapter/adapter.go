// Package muxadapter builds argv command lines for the external terminal
// multiplexer and parses its delimited output. Every builder returns a
// []string argv (never a shell string) so callers execute it directly —
// locally via os/exec or remotely via an SSH session.Run equivalent — with
// no shell-quoting surface at all.
package muxadapter

import (
	"regexp"
	"strconv"
	"strings"
)

// fieldDelimiter separates fields inside a single multiplexer output line.
// Three pipe characters so that shell tokenization of the raw line (on the
// rare path that does go through a shell) cannot split a field, and so a
// row containing the delimiter inside one of its own fields is detectable
// and discarded as malformed.
const fieldDelimiter = "|||"

// MuxBinary is the external multiplexer's executable name, used by callers
// that build a full exec argv (e.g. ["tmux", "list-sessions", ...]) rather
// than going through a PATH-resolved session.Run wrapper.
const MuxBinary = "tmux"

// SessionListing is one row from the multiplexer's list-sessions command.
type SessionListing struct {
	MuxSessionID string
	SessionName  string
	WindowCount  int
	CreatedUnix  int64
}

// PaneListing is one row from list-panes.
type PaneListing struct {
	PaneID         string
	PID            int
	CurrentCommand string
	Width          int
	Height         int
	WindowIndex    int
	CurrentPath    string
}

// BuildListSessionsArgs returns the argv for listing all sessions.
func BuildListSessionsArgs() []string {
	return []string{"list-sessions", "-F", strings.Join([]string{
		"#{session_id}", "#{session_name}", "#{session_windows}", "#{session_created}",
	}, fieldDelimiter)}
}

// BuildListPanesArgs returns the argv for listing panes in a session.
func BuildListPanesArgs(sessionName string) []string {
	return []string{"list-panes", "-t", sessionName, "-F", strings.Join([]string{
		"#{pane_id}", "#{pane_pid}", "#{pane_current_command}", "#{pane_width}",
		"#{pane_height}", "#{window_index}", "#{pane_current_path}",
	}, fieldDelimiter)}
}

// BuildCaptureLastLineArgs returns the argv to capture the last 5 lines of
// scrollback for a pane; the caller takes the last non-empty line.
func BuildCaptureLastLineArgs(sessionName, paneID string) []string {
	return []string{"capture-pane", "-p", "-S", "-5", "-t", sessionName + "." + paneID}
}

// BuildCaptureRecentBufferArgs returns the argv to capture the last `lines`
// lines, used for user-input extraction.
func BuildCaptureRecentBufferArgs(sessionName, paneID string, lines int) []string {
	return []string{"capture-pane", "-p", "-S", "-" + strconv.Itoa(lines), "-t", sessionName + "." + paneID}
}

// BuildCaptureStatusBarArgs returns the argv to expand the status-right
// format string for a session.
func BuildCaptureStatusBarArgs(sessionName string) []string {
	return []string{"display-message", "-p", "-t", sessionName, "#{T:status-right}"}
}

// BuildCreateSessionArgs returns the argv to create a detached session.
func BuildCreateSessionArgs(name, workingDir, command string) []string {
	args := []string{"new-session", "-d", "-s", name}
	if workingDir != "" {
		args = append(args, "-c", workingDir)
	}
	if command != "" {
		args = append(args, command)
	}
	return args
}

// BuildAttachSessionArgs returns the argv to attach interactively to a
// session, selecting paneID as the active pane first so the client lands
// directly in the pane it asked for rather than whichever pane last had
// focus.
func BuildAttachSessionArgs(sessionName, paneID string) []string {
	if paneID == "" {
		return []string{"attach-session", "-t", sessionName}
	}
	return []string{"attach-session", "-t", sessionName + "." + paneID}
}

// BuildKillSessionArgs returns the argv to kill an entire session.
func BuildKillSessionArgs(name string) []string {
	return []string{"kill-session", "-t", name}
}

// BuildKillPaneArgs returns the argv to kill a single pane.
func BuildKillPaneArgs(name, paneID string) []string {
	return []string{"kill-pane", "-t", name + "." + paneID}
}

// BuildHasSessionArgs returns the argv to test session existence; a
// non-zero exit means the session does not exist.
func BuildHasSessionArgs(name string) []string {
	return []string{"has-session", "-t", name}
}

// BuildSendKeysArgs returns the argv to forward verbatim input to a pane.
// data is sent literally (-l); no Enter key name is appended.
func BuildSendKeysArgs(sessionName, paneID, data string) []string {
	return []string{"send-keys", "-t", sessionName + "." + paneID, "-l", data}
}

// BuildResizeArgs returns the argv to set a pane's dimensions.
func BuildResizeArgs(sessionName, paneID string, cols, rows int) []string {
	return []string{"resize-pane", "-t", sessionName + "." + paneID,
		"-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows)}
}

// ansiEscape matches ANSI CSI and OSC escape sequences; stripANSI removes
// the remaining control bytes separately.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?\x07`)

// StripANSI removes ANSI escape sequences and remaining control bytes,
// exported so callers that capture a raw terminal transcript outside the
// list-sessions/list-panes parse path (the native-SSH exec fallback) can
// clean it with the same rules before attempting to parse delimited fields.
func StripANSI(s string) string {
	return stripANSI(s)
}

func stripANSI(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ParseListSessions parses list-sessions output. Empty output yields an
// empty (non-nil) slice; rows with the wrong field count, or whose field
// content itself contains the delimiter, are discarded rather than failing
// the whole parse.
func ParseListSessions(output string) []SessionListing {
	out := []SessionListing{}
	for _, line := range splitNonEmptyLines(output) {
		fields := strings.Split(line, fieldDelimiter)
		if len(fields) != 4 {
			continue
		}
		windows, err1 := strconv.Atoi(fields[2])
		created, err2 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, SessionListing{
			MuxSessionID: fields[0],
			SessionName:  fields[1],
			WindowCount:  windows,
			CreatedUnix:  created,
		})
	}
	return out
}

// ParsePanes parses list-panes output with the same tolerance rules as
// ParseListSessions.
func ParsePanes(output string) []PaneListing {
	out := []PaneListing{}
	for _, line := range splitNonEmptyLines(output) {
		fields := strings.Split(line, fieldDelimiter)
		if len(fields) != 7 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[1])
		width, err2 := strconv.Atoi(fields[3])
		height, err3 := strconv.Atoi(fields[4])
		windowIdx, err4 := strconv.Atoi(fields[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		out = append(out, PaneListing{
			PaneID:         fields[0],
			PID:            pid,
			CurrentCommand: fields[2],
			Width:          width,
			Height:         height,
			WindowIndex:    windowIdx,
			CurrentPath:    fields[6],
		})
	}
	return out
}

// ParseCaptureLastLine returns the last non-empty, cleaned line, truncated
// to 100 characters, or "" if there is none.
func ParseCaptureLastLine(output string) string {
	lines := splitAllLines(output)
	for i := len(lines) - 1; i >= 0; i-- {
		cleaned := strings.TrimSpace(stripANSI(lines[i]))
		if cleaned != "" {
			return truncate(cleaned, 100)
		}
	}
	return ""
}

var styleTagPattern = regexp.MustCompile(`#\[[^\]]*\]`)

// ParseCaptureStatusBar cleans a display-message status-bar expansion of
// style tags and control bytes, truncated to 150 characters.
func ParseCaptureStatusBar(output string) string {
	cleaned := styleTagPattern.ReplaceAllString(output, "")
	cleaned = strings.TrimSpace(stripANSI(cleaned))
	return truncate(cleaned, 150)
}

// ParseCaptureRecentBuffer returns every line, cleaned of ANSI/control
// bytes, oldest first, for the user-input extractor to scan bottom-up.
func ParseCaptureRecentBuffer(output string) []string {
	lines := splitAllLines(output)
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		cleaned = append(cleaned, stripANSI(l))
	}
	return cleaned
}

func splitAllLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, l := range splitAllLines(s) {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
