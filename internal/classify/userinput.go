package classify

import (
	"regexp"
	"strings"
)

var systemLinePrefixes = []string{"claude", "assistant", "thinking", "loading", "waiting"}

var (
	bracketLinePattern = regexp.MustCompile(`^\[.*\]$`)
	dashLinePattern    = regexp.MustCompile(`^─+$`)
	doubleDashPattern  = regexp.MustCompile(`^═+$`)
	numberedLinePattern = regexp.MustCompile(`^\d+\.`)
	repeatedDashPattern = regexp.MustCompile(`^-{3,}`)

	promptAngleBracket  = regexp.MustCompile(`^>\s?(.*)$`)
	promptChevron       = regexp.MustCompile(`^❯\s?(.*)$`)
	promptHumanLabel    = regexp.MustCompile(`(?i)^human>\s?(.*)$`)
	promptShellDollar   = regexp.MustCompile(`^\$\s?(.*)$`)
	promptShellPercent  = regexp.MustCompile(`^%\s?(.*)$`)
	promptGenericArrow  = regexp.MustCompile(`^>\s*(.+)$`)

	onlyPunctOrSpace = regexp.MustCompile(`^[\s.\-]*$`)
)

// isSystemLine reports whether a line should be skipped entirely when
// scanning for the user's last input, per the spec's ordered skip rules.
func isSystemLine(line string) bool {
	if line == "" {
		return true
	}
	lower := strings.ToLower(line)
	for _, prefix := range systemLinePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if bracketLinePattern.MatchString(line) ||
		dashLinePattern.MatchString(line) ||
		doubleDashPattern.MatchString(line) ||
		strings.HasPrefix(line, "•") ||
		repeatedDashPattern.MatchString(line) ||
		numberedLinePattern.MatchString(line) {
		return true
	}
	return false
}

// isValidUserInput enforces the non-empty / ≤200 char / not-solely-filler
// rule used to accept a captured prompt match.
func isValidUserInput(s string) bool {
	if s == "" || len([]rune(s)) > 200 {
		return false
	}
	if onlyPunctOrSpace.MatchString(s) {
		return false
	}
	for _, r := range s {
		if r < 0x20 && r != '\t' {
			return false
		}
	}
	return true
}

var promptPatterns = []*regexp.Regexp{
	promptAngleBracket,
	promptChevron,
	promptHumanLabel,
	promptShellDollar,
	promptShellPercent,
	promptGenericArrow,
}

// ExtractUserLastInput scans captured lines bottom-up (lines is oldest
// first, as muxadapter.ParseCaptureRecentBuffer returns them), skipping
// system lines, and returns the first prompt-pattern match whose captured
// text is valid, truncated to 100 characters. Returns "" if none matches.
func ExtractUserLastInput(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], "\r\n")
		trimmed := strings.TrimSpace(line)
		if isSystemLine(trimmed) {
			continue
		}
		for _, pat := range promptPatterns {
			m := pat.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			captured := strings.TrimSpace(m[1])
			if isValidUserInput(captured) {
				return truncate(captured, 100)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
