// Package hook implements the policy-check client invoked by the host tool
// at lifecycle points. Each check is a short-lived process: it talks to the
// session watcher over IPC when one is reachable and reproduces the same
// classification locally when one is not. The only contract exposed outward
// is the Decision; infrastructure failures never surface there.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/hookwatch/internal/ipc"
	"github.com/ppiankov/hookwatch/internal/rules"
	"github.com/ppiankov/hookwatch/internal/session"
	"github.com/ppiankov/hookwatch/internal/transcript"
)

// timeoutEnv overrides the IPC timeout, e.g. "500ms".
const timeoutEnv = "HOOKWATCH_IPC_TIMEOUT"

// Event is a typed lifecycle point.
type Event string

const (
	EventSessionStart     Event = "session_start"
	EventUserPromptSubmit Event = "user_prompt_submit"
	EventPreToolUse       Event = "pre_tool_use"
	EventPostToolUse      Event = "post_tool_use"
	EventStop             Event = "stop"
	EventSubagentStop     Event = "subagent_stop"
)

// eventAliases maps host-tool spellings to events. The host tool sends
// PascalCase event names; the CLI accepts either form.
var eventAliases = map[string]Event{
	"session_start":      EventSessionStart,
	"sessionstart":       EventSessionStart,
	"user_prompt_submit": EventUserPromptSubmit,
	"userpromptsubmit":   EventUserPromptSubmit,
	"pre_tool_use":       EventPreToolUse,
	"pretooluse":         EventPreToolUse,
	"post_tool_use":      EventPostToolUse,
	"posttooluse":        EventPostToolUse,
	"stop":               EventStop,
	"subagent_stop":      EventSubagentStop,
	"subagentstop":       EventSubagentStop,
}

// ParseEvent resolves an event name in either host-tool or snake_case form.
func ParseEvent(name string) (Event, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if ev, ok := eventAliases[key]; ok {
		return ev, nil
	}
	return "", fmt.Errorf("unknown hook event %q", name)
}

// Payload is the hook input the host tool writes on stdin. Missing fields
// are tolerated; checks degrade instead of failing.
type Payload struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	HookEventName  string          `json:"hook_event_name"`
	ToolName       string          `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
}

// ParsePayload decodes a hook payload. An empty or unreadable stream
// yields an empty payload, not an error, so checks must still run.
func ParsePayload(r io.Reader) *Payload {
	var p Payload
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return &p
	}
	_ = json.Unmarshal(data, &p)
	return &p
}

// CommandText extracts the shell command from a tool input, falling back
// to the raw input blob for non-command tools.
func (p *Payload) CommandText() string {
	if len(p.ToolInput) == 0 {
		return ""
	}
	var in struct {
		Command string `json:"command"`
	}
	if json.Unmarshal(p.ToolInput, &in) == nil && in.Command != "" {
		return in.Command
	}
	return string(p.ToolInput)
}

// ResponseText flattens a tool response to text for classification.
func (p *Payload) ResponseText() string {
	if len(p.ToolResponse) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(p.ToolResponse, &s) == nil {
		return s
	}
	return string(p.ToolResponse)
}

// Decision is the policy boundary: the only shape consumers see.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Approve returns a passing decision.
func Approve() Decision { return Decision{Decision: "approve"} }

// Block returns a blocking decision with the given reason.
func Block(reason string) Decision {
	return Decision{Decision: "block", Reason: reason}
}

// Client runs policy checks for one session.
type Client struct {
	reg     *session.Registry
	engine  *rules.Engine
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithEngine overrides the rule engine.
func WithEngine(e *rules.Engine) Option {
	return func(c *Client) { c.engine = e }
}

// WithTimeout overrides the IPC timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a hook client for the given session registry.
func NewClient(reg *session.Registry, opts ...Option) *Client {
	c := &Client{
		reg:     reg,
		engine:  rules.Default(),
		timeout: ipc.DefaultTimeout,
	}
	if v := os.Getenv(timeoutEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.timeout = d
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Notify sends a fire-and-forget event to the watcher. Fallible so the
// intent to ignore failures lives at each call site, not in the transport.
func (c *Client) Notify(event Event, tool, result string) error {
	return ipc.SendNotify(c.reg.SocketPath(), string(event), tool, result, c.timeout)
}

// GetPendingOrFallback queries the watcher for pending issues. On any IPC
// failure it classifies the newest assistant text directly: same engine,
// same result shape, different path. Fallback is not an error condition.
func (c *Client) GetPendingOrFallback(transcriptPath string) ipc.Pending {
	pending, err := ipc.QueryPending(c.reg.SocketPath(), c.timeout)
	if err == nil {
		return pending
	}

	issues := []rules.Issue{}
	if transcriptPath != "" {
		text, readErr := transcript.LatestAssistantText(transcriptPath)
		if readErr == nil {
			if found := c.engine.Classify(text); found != nil {
				issues = found
			}
		}
	}
	return ipc.Pending{HasIssues: len(issues) > 0, Issues: issues}
}
