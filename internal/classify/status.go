// Package classify holds pure, declarative-rule-table classifiers used by
// the Session Discovery Engine. Nothing here performs I/O: every function
// takes already-gathered strings/times and returns a classification, which
// is what makes the whole heuristic testable without a PTY or SSH session.
package classify

import (
	"regexp"
	"strings"
	"time"

	"muxfleet/pkg/types"
)

// brailleSpinners holds the Unicode Braille codepoints used by common
// spinner animations.
const brailleSpinners = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏⠐⠠⠄⠂⠁"

var thinkingPhrases = []string{
	"thinking…", "running tool…", "searching…", "reading…", "writing…", "executing…",
}

var strictErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^Error:`),
	regexp.MustCompile(`^error\[E\d+\]`),
	regexp.MustCompile(`ToolError:`),
	regexp.MustCompile(`APIError:`),
	regexp.MustCompile(`^FAILED:`),
	regexp.MustCompile(`^panic:`),
	regexp.MustCompile(`^fatal:`),
	regexp.MustCompile(`^Exception:`),
	regexp.MustCompile(`^\s*×`),
}

// StatusInput carries every observation the four-level classifier needs.
// Fields the Discovery Engine could not gather within budget are left at
// their zero value and simply fail to match, never causing an error.
type StatusInput struct {
	// RecentLines are the last 5 lines of the pane's scrollback, oldest first.
	RecentLines []string
	// ActivityFileModTime is the mtime of the project's most recent .jsonl
	// activity file, zero if none was found.
	ActivityFileModTime time.Time
	// Now is injected so tests do not depend on wall-clock time.
	Now time.Time
	// HasHUDDir reports whether a .omc directory exists in the working directory.
	HasHUDDir bool
	// HUDStatusBarHasSpinner reports whether the status bar contains a spinner glyph.
	HUDStatusBarHasSpinner bool
	// HUDStateActive reports whether any known HUD state JSON has "active": true.
	HUDStateActive bool
}

// Classify runs the four-level decision, first match wins.
func Classify(in StatusInput) types.AssistantOperationStatus {
	if status, ok := classifyTerminalBuffer(in.RecentLines); ok {
		return status
	}
	if status, ok := classifyActivityFile(in.ActivityFileModTime, in.Now); ok {
		return status
	}
	if status, ok := classifyExternalHUD(in); ok {
		return status
	}
	return types.AssistantIdle
}

func classifyTerminalBuffer(lines []string) (types.AssistantOperationStatus, bool) {
	for _, line := range lines {
		if containsAny(line, brailleSpinners) {
			return types.AssistantThinking, true
		}
		lower := strings.ToLower(line)
		for _, phrase := range thinkingPhrases {
			if strings.Contains(lower, phrase) {
				return types.AssistantThinking, true
			}
		}
	}
	if len(lines) > 0 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if last == ">" || last == "❯" || strings.EqualFold(last, "human>") {
			return types.AssistantWaitingForInput, true
		}
		for _, pat := range strictErrorPatterns {
			if pat.MatchString(last) {
				return types.AssistantError, true
			}
		}
	}
	return "", false
}

func classifyActivityFile(mtime, now time.Time) (types.AssistantOperationStatus, bool) {
	if mtime.IsZero() {
		return "", false
	}
	if now.Sub(mtime) <= 30*time.Second {
		return types.AssistantThinking, true
	}
	return "", false
}

func classifyExternalHUD(in StatusInput) (types.AssistantOperationStatus, bool) {
	if !in.HasHUDDir {
		return "", false
	}
	if in.HUDStatusBarHasSpinner {
		return types.AssistantThinking, true
	}
	if in.HUDStateActive {
		return types.AssistantThinking, true
	}
	return "", false
}

func containsAny(s, runes string) bool {
	for _, r := range runes {
		if strings.ContainsRune(s, r) {
			return true
		}
	}
	return false
}
