package watcher

import (
	"fmt"
	"os"

	"github.com/ppiankov/hookwatch/internal/ipc"
	"github.com/ppiankov/hookwatch/internal/transcript"
)

// EventKind groups incoming hook names by how the watcher reacts to them.
// New hook names are rows in hookKinds; new behaviors are rows in
// kindHandlers.
type EventKind int

const (
	// KindUnknown is ignored.
	KindUnknown EventKind = iota
	// KindResponse marks the end of an assistant response; the newest
	// assistant text is read from the transcript and classified.
	KindResponse
	// KindToolResult carries command or result text inline in the notify;
	// the payload itself is classified.
	KindToolResult
	// KindActivity only proves the session is alive.
	KindActivity
)

// hookKinds maps hook names (as sent by clients) to event kinds.
var hookKinds = map[string]EventKind{
	"stop":               KindResponse,
	"subagent_stop":      KindResponse,
	"pre_tool_use":       KindToolResult,
	"post_tool_use":      KindToolResult,
	"user_prompt_submit": KindActivity,
	"session_start":      KindActivity,
}

// KindOf returns the event kind for a hook name.
func KindOf(hook string) EventKind {
	return hookKinds[hook]
}

// kindHandlers maps event kinds to watcher reactions.
var kindHandlers = map[EventKind]func(*Watcher, ipc.Message){
	KindResponse:   (*Watcher).onResponse,
	KindToolResult: (*Watcher).onToolResult,
	KindActivity:   func(*Watcher, ipc.Message) {},
}

// onResponse re-reads the newest assistant text out-of-band and classifies
// it. The notify's inline result is ignored; the transcript is the source
// of truth for response text.
func (w *Watcher) onResponse(ipc.Message) {
	w.scanTranscript()
}

// onToolResult classifies the inline payload: the command text for
// pre-tool events, the tool output for post-tool events. A notify with no
// inline result falls back to the newest tool_use input in the transcript.
func (w *Watcher) onToolResult(msg ipc.Message) {
	text := msg.Result
	if text == "" && w.cfg.Transcript != "" {
		input, err := transcript.LatestToolUse(w.cfg.Transcript, msg.Tool)
		if err != nil {
			return
		}
		text = input
	}
	w.Append(w.cfg.Engine.Classify(text))
}

// scanTranscript classifies the newest assistant text if it changed since
// the last scan. Shared by the response handler and the tailer so one
// response is never reported twice.
func (w *Watcher) scanTranscript() {
	if w.cfg.Transcript == "" {
		return
	}
	text, err := transcript.LatestAssistantText(w.cfg.Transcript)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "hookwatch: read transcript: %v\n", err)
		}
		return
	}
	if text == "" {
		return
	}

	w.mu.Lock()
	changed := text != w.lastText
	if changed {
		w.lastText = text
	}
	w.mu.Unlock()

	if changed {
		w.Append(w.cfg.Engine.Classify(text))
	}
}
