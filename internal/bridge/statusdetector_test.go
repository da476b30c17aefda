package bridge

import (
	"testing"
	"time"

	"muxfleet/pkg/types"
)

func TestStatusDetector_EmitsOnFirstTransition(t *testing.T) {
	var got types.AssistantOperationStatus
	d := NewStatusDetector(func(s types.AssistantOperationStatus) { got = s })
	d.Feed([]byte("⠙ thinking…\n"))
	if got != types.AssistantThinking {
		t.Fatalf("expected AssistantThinking, got %v", got)
	}
}

func TestStatusDetector_DoesNotReemitSameStatus(t *testing.T) {
	count := 0
	d := NewStatusDetector(func(types.AssistantOperationStatus) { count++ })
	d.Feed([]byte("⠙ thinking…\n"))
	d.lastEmit = time.Time{} // force past debounce window for the next Feed
	d.Feed([]byte("⠙ still thinking…\n"))
	if count != 1 {
		t.Fatalf("expected exactly one emission for an unchanged status, got %d", count)
	}
}

func TestStatusDetector_DebouncesRapidFeeds(t *testing.T) {
	count := 0
	d := NewStatusDetector(func(types.AssistantOperationStatus) { count++ })
	d.Feed([]byte("⠙ thinking…\n"))
	d.Feed([]byte("> \n")) // within debounce window, should not reclassify yet
	if count != 1 {
		t.Fatalf("expected debounce to suppress the second classification, got %d emissions", count)
	}
}

func TestStatusDetector_WindowTrimsToCap(t *testing.T) {
	d := NewStatusDetector(nil)
	big := make([]byte, statusWindowBytes+500)
	for i := range big {
		big[i] = 'a'
	}
	d.Feed(big)
	if len(d.window) != statusWindowBytes {
		t.Fatalf("expected window trimmed to cap %d, got %d", statusWindowBytes, len(d.window))
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("a\nb\nc")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLastNLines(t *testing.T) {
	lines := []string{"1", "2", "3", "4", "5"}
	got := lastNLines(lines, 3)
	want := []string{"3", "4", "5"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
