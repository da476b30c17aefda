package discovery

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"muxfleet/internal/classify"
	"muxfleet/internal/muxadapter"
	"muxfleet/pkg/types"
)

// enrichLocal gathers every best-effort metadata field for a local pane,
// bounded by a single enrichment-wide timeout so a stuck capture cannot
// stall the rest of the cycle. Fields are left at their zero value if the
// budget runs out or the underlying capture fails; enrichment failure is
// never propagated as a cycle error.
func (e *Engine) enrichLocal(ctx context.Context, host types.HostConfig, sl muxadapter.SessionListing, p muxadapter.PaneListing) types.Enrichment {
	ectx, cancel := context.WithTimeout(ctx, enrichmentTimeout)
	defer cancel()

	var enr types.Enrichment

	if out, err := e.execMux(ectx, host, muxadapter.BuildCaptureLastLineArgs(sl.SessionName, p.PaneID)); err == nil {
		enr.LastOutputLine = muxadapter.ParseCaptureLastLine(out)
	}
	if out, err := e.execMux(ectx, host, muxadapter.BuildCaptureStatusBarArgs(sl.SessionName)); err == nil {
		enr.StatusBar = muxadapter.ParseCaptureStatusBar(out)
	}
	enr.ConversationSummary = conversationSummary(p.CurrentPath)

	var recentLines []string
	if out, err := e.execMux(ectx, host, muxadapter.BuildCaptureRecentBufferArgs(sl.SessionName, p.PaneID, userInputScanLines)); err == nil {
		recentLines = muxadapter.ParseCaptureRecentBuffer(out)
		enr.UserLastInput = classify.ExtractUserLastInput(recentLines)
	}

	enr.AssistantOperationStatus = classify.Classify(classify.StatusInput{
		RecentLines:            lastN(recentLines, 5),
		ActivityFileModTime:    mostRecentActivityFileModTime(p.CurrentPath),
		Now:                    time.Now(),
		HasHUDDir:              hudDirExists(p.CurrentPath),
		HUDStatusBarHasSpinner: containsSpinnerGlyph(enr.StatusBar),
		HUDStateActive:         hudStateActive(p.CurrentPath),
	})
	return enr
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

const brailleSpinnerGlyphs = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏⠐⠠⠄⠂⠁"

func containsSpinnerGlyph(s string) bool {
	for _, r := range brailleSpinnerGlyphs {
		if strings.ContainsRune(s, r) {
			return true
		}
	}
	return false
}

// slashifyPath turns an absolute working directory into the dash-joined
// form Claude Code uses to name its per-project directory under
// ~/.claude/projects/, e.g. "/home/ada/proj" -> "-home-ada-proj".
func slashifyPath(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

func claudeProjectDir(workingDir string) (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil || workingDir == "" {
		return "", false
	}
	dir := filepath.Join(home, ".claude", "projects", slashifyPath(workingDir))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// conversationSummary reads the project directory's sessions-index.json
// last entry's summary field, falling back to the last "type":"summary"
// line of the most recently modified .jsonl transcript file.
func conversationSummary(workingDir string) string {
	dir, ok := claudeProjectDir(workingDir)
	if !ok {
		return ""
	}

	if summary, ok := summaryFromIndex(filepath.Join(dir, "sessions-index.json")); ok {
		return summary
	}
	return summaryFromLatestTranscript(dir)
}

func summaryFromIndex(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var entries []struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		return "", false
	}
	last := entries[len(entries)-1]
	if last.Summary == "" {
		return "", false
	}
	return last.Summary, true
}

func summaryFromLatestTranscript(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var latestPath string
	var latestMod time.Time
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".jsonl") {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
			latestPath = filepath.Join(dir, ent.Name())
		}
	}
	if latestPath == "" {
		return ""
	}

	f, err := os.Open(latestPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	var summary string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		var probe struct {
			Type    string `json:"type"`
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			continue
		}
		if probe.Type == "summary" {
			summary = probe.Summary
		}
	}
	return summary
}

func mostRecentActivityFileModTime(workingDir string) time.Time {
	dir, ok := claudeProjectDir(workingDir)
	if !ok {
		return time.Time{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}
	}
	var latest time.Time
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".jsonl") {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}

func hudDirExists(workingDir string) bool {
	if workingDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(workingDir, ".omc"))
	return err == nil && info.IsDir()
}

// hudStateJSONNames are the known HUD state files checked for "active": true.
var hudStateJSONNames = []string{"state.json", "status.json", "session.json"}

func hudStateActive(workingDir string) bool {
	if workingDir == "" {
		return false
	}
	dir := filepath.Join(workingDir, ".omc")
	names := append([]string{}, hudStateJSONNames...)
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var probe struct {
			Active bool `json:"active"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.Active {
			return true
		}
	}
	return false
}
