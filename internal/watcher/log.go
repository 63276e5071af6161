package watcher

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/hookwatch/internal/rules"
	"github.com/ppiankov/hookwatch/internal/session"
)

// issueRecord is one line of the session's durable issue log. Drained
// issues vanish from the queue; the log keeps the history.
type issueRecord struct {
	Timestamp string          `json:"ts"`
	Type      rules.IssueType `json:"type"`
	Pattern   string          `json:"pattern"`
}

// logIssues appends issues to the session's issue log. Failures are
// reported and otherwise ignored: the queue is the delivery path, the log
// is history, and neither may take the watcher down.
func (w *Watcher) logIssues(issues []rules.Issue) {
	path := w.cfg.Registry.IssueLogPath()
	_ = session.RotateIfLarge(path, session.MaxLogBytes)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookwatch: issue log: %v\n", err)
		return
	}
	defer f.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	enc := json.NewEncoder(f)
	for _, is := range issues {
		if err := enc.Encode(issueRecord{Timestamp: now, Type: is.Type, Pattern: is.Pattern}); err != nil {
			fmt.Fprintf(os.Stderr, "hookwatch: issue log: %v\n", err)
			return
		}
	}
}
