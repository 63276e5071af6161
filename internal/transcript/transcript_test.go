package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func assistantLine(text string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":%q}]}}`, text)
}

func userLine(text string) string {
	return fmt.Sprintf(`{"type":"user","message":{"role":"user","content":[{"type":"text","text":%q}]}}`, text)
}

func TestLatestAssistantTextPicksNewest(t *testing.T) {
	path := writeTranscript(t,
		userLine("do the thing"),
		assistantLine("first reply"),
		userLine("keep going"),
		assistantLine("second reply"),
	)

	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatalf("LatestAssistantText: %v", err)
	}
	if got != "second reply" {
		t.Errorf("got %q, want %q", got, "second reply")
	}
}

func TestLatestAssistantTextJoinsBlocks(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}}`,
	)

	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "part one\npart two" {
		t.Errorf("got %q", got)
	}
}

func TestLatestAssistantTextSkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t,
		assistantLine("good"),
		`{this is not json`,
		`{"type":"assistant","message":"also-not-a-message"}`,
	)

	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "good" {
		t.Errorf("got %q, want %q", got, "good")
	}
}

func TestLatestAssistantTextEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestLatestAssistantTextMissingFile(t *testing.T) {
	if _, err := LatestAssistantText(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLatestAssistantTextLargeTranscript(t *testing.T) {
	// File larger than the tail window; only the newest records matter.
	lines := make([]string, 0, 4096)
	for i := 0; i < 4096; i++ {
		lines = append(lines, assistantLine(fmt.Sprintf("reply %04d padding %s", i, strings.Repeat("x", 100))))
	}
	path := writeTranscript(t, lines...)

	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "reply 4095") {
		t.Errorf("got %q, want newest reply", got[:20])
	}
}

func TestTailWindowOnLineBoundary(t *testing.T) {
	// Fixed-width lines so the tail window starts exactly after a newline.
	// The record on the boundary is complete and must not be discarded.
	const lineLen = 1024 // line plus newline; divides tailWindow
	pad := func(rec string) string {
		return rec[:len(rec)-2] + strings.Repeat("y", lineLen-1-len(rec)) + `"}`
	}

	lines := make([]string, 0, tailWindow/lineLen+1)
	lines = append(lines, pad(`{"type":"user","pad":""}`))
	// First line inside the window: the only assistant text in the file.
	lines = append(lines, pad(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"boundary reply"}]},"pad":""}`))
	for len(lines) < tailWindow/lineLen+1 {
		lines = append(lines, pad(`{"type":"user","pad":""}`))
	}
	path := writeTranscript(t, lines...)

	if info, err := os.Stat(path); err != nil || info.Size() != tailWindow+lineLen {
		t.Fatalf("fixture size = %v, want %d", info.Size(), tailWindow+lineLen)
	}

	got, err := LatestAssistantText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "boundary reply" {
		t.Errorf("got %q, want the record on the window boundary", got)
	}
}

func TestLatestToolUse(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash","input":{"command":"rm -rf /"}}]}}`,
	)

	got, err := LatestToolUse(path, "Bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "rm -rf /") {
		t.Errorf("got %q, want newest tool_use input", got)
	}

	if got, _ := LatestToolUse(path, "Edit"); got != "" {
		t.Errorf("got %q for unused tool, want empty", got)
	}

	// Empty tool name matches any tool.
	got, err = LatestToolUse(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "rm -rf /") {
		t.Errorf("got %q", got)
	}
}
