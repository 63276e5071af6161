// Package transcript reads session transcript files: append-only JSONL,
// one record per line, newest last. Records follow the host tool's stored
// message format: a type tag plus a nested message with content blocks.
// Readers scan only a bounded tail window so short-lived hook clients stay
// fast on long transcripts.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

// tailWindow is how many trailing bytes of the transcript are scanned.
// Records older than the window are never relevant to "newest text".
const tailWindow = 256 * 1024

// maxLine bounds a single transcript line; assistant turns with large tool
// results can run long.
const maxLine = 1 << 20

// Record is one transcript line. Fields beyond these exist on disk but are
// not needed here.
type Record struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// messageBody is the nested message payload of a record.
type messageBody struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is one element of a message content array.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// LatestAssistantText returns the text of the newest assistant record:
// all its text blocks joined with newlines. Returns "" if the transcript
// has no assistant text. Malformed lines are skipped, never fatal.
func LatestAssistantText(path string) (string, error) {
	var latest string
	err := scanTail(path, func(rec Record) {
		if rec.Type != "assistant" {
			return
		}
		if text := textBlocks(rec.Message); text != "" {
			latest = text
		}
	})
	return latest, err
}

// LatestToolUse returns the raw input of the newest tool_use block for the
// named tool. An empty tool matches any tool. Returns "" when none found.
func LatestToolUse(path, tool string) (string, error) {
	var latest string
	err := scanTail(path, func(rec Record) {
		if rec.Type != "assistant" {
			return
		}
		var body messageBody
		if json.Unmarshal(rec.Message, &body) != nil {
			return
		}
		for _, b := range body.Content {
			if b.Type != "tool_use" {
				continue
			}
			if tool != "" && !strings.EqualFold(b.Name, tool) {
				continue
			}
			latest = string(b.Input)
		}
	})
	return latest, err
}

// scanTail reads the trailing window of the file and feeds each parseable
// record to fn, oldest first.
func scanTail(path string, fn func(Record)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	partial := false
	if info.Size() > tailWindow {
		off := info.Size() - tailWindow
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return err
		}
		// The first line is a fragment only when the window starts
		// mid-line. A window starting right after a newline begins on a
		// record boundary and the line is complete.
		var prev [1]byte
		if _, err := f.ReadAt(prev[:], off-1); err != nil || prev[0] != '\n' {
			partial = true
		}
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if partial {
			// First line after a mid-file seek is a fragment.
			partial = false
			continue
		}
		if len(line) == 0 {
			continue
		}
		var rec Record
		if json.Unmarshal(line, &rec) != nil {
			continue
		}
		fn(rec)
	}
	return sc.Err()
}

// textBlocks joins the text blocks of a message payload.
func textBlocks(raw json.RawMessage) string {
	var body messageBody
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	var parts []string
	for _, b := range body.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
