package hook

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/hookwatch/internal/rules"
)

// blockingAtStop are the issue categories that block response completion:
// the response claimed to be done while leaving work behind.
var blockingAtStop = map[rules.IssueType]bool{
	rules.Placeholder:    true,
	rules.Delegation:     true,
	rules.ScopeReduction: true,
}

// checker maps one lifecycle event to a decision.
type checker func(*Client, *Payload) Decision

// checkers is the event dispatch table. Adding a lifecycle point means
// adding a row here.
var checkers = map[Event]checker{
	EventSessionStart:     (*Client).checkActivity,
	EventUserPromptSubmit: (*Client).checkActivity,
	EventPreToolUse:       (*Client).checkPreToolUse,
	EventPostToolUse:      (*Client).checkPostToolUse,
	EventStop:             (*Client).checkStop,
	EventSubagentStop:     (*Client).checkStop,
}

// Check runs the event's checker. Unknown events approve: a check the
// table does not know cannot be a reason to block the host tool.
func (c *Client) Check(event Event, p *Payload) Decision {
	fn, ok := checkers[event]
	if !ok {
		return Approve()
	}
	return fn(c, p)
}

// checkActivity lazily starts the watcher and reports the event. Never
// blocks.
func (c *Client) checkActivity(p *Payload) Decision {
	c.ensureWatcher(p)
	// Advisory notify; failure means no watcher, which is fine.
	_ = c.Notify(Event(eventName(p, EventUserPromptSubmit)), "", "")
	return Approve()
}

// checkPreToolUse classifies the command synchronously before execution.
// DANGEROUS_COMMAND blocks here and only here; after execution it is too
// late for blocking to help.
func (c *Client) checkPreToolUse(p *Payload) Decision {
	c.ensureWatcher(p)

	cmd := p.CommandText()
	if cmd == "" {
		return Approve()
	}

	// Advisory notify so the watcher's queue sees the command too.
	_ = c.Notify(EventPreToolUse, p.ToolName, cmd)

	issues := c.engine.Classify(cmd)
	var dangerous []string
	for _, is := range issues {
		if is.Type == rules.DangerousCommand {
			dangerous = append(dangerous, is.Pattern)
		}
	}
	if len(dangerous) > 0 {
		return Block(fmt.Sprintf("dangerous command pattern: %s", strings.Join(dangerous, ", ")))
	}
	return Approve()
}

// checkPostToolUse reports the tool result for out-of-band classification.
// Post-tool checks never block; the watcher accumulates the issues and the
// stop check delivers them.
func (c *Client) checkPostToolUse(p *Payload) Decision {
	// Advisory notify; ignored on purpose when no watcher is reachable.
	_ = c.Notify(EventPostToolUse, p.ToolName, p.ResponseText())
	return Approve()
}

// checkStop collects everything detected this turn, via the watcher or
// the fallback path, and blocks completion when the response left work
// behind.
func (c *Client) checkStop(p *Payload) Decision {
	// Tell the watcher the response is complete so it classifies the
	// final transcript state before the query drains.
	_ = c.Notify(EventStop, "", "")

	pending := c.GetPendingOrFallback(p.TranscriptPath)

	var cats []string
	seen := make(map[rules.IssueType]bool)
	for _, is := range pending.Issues {
		if blockingAtStop[is.Type] && !seen[is.Type] {
			seen[is.Type] = true
			cats = append(cats, string(is.Type))
		}
	}
	if len(cats) > 0 {
		return Block(fmt.Sprintf("response left work behind: %s", strings.Join(cats, ", ")))
	}
	return Approve()
}

// ensureWatcher spawns the session watcher if needed. Spawn failure is
// logged and otherwise ignored: the fallback path carries the session.
func (c *Client) ensureWatcher(p *Payload) {
	if err := c.reg.EnsureSpawned(p.TranscriptPath); err != nil {
		fmt.Fprintf(os.Stderr, "hookwatch: ensure watcher: %v\n", err)
	}
}

// eventName echoes the payload's own event name when present so the
// watcher's table sees the host tool's real event, not the checker's.
func eventName(p *Payload, fallback Event) string {
	if p.HookEventName == "" {
		return string(fallback)
	}
	if ev, err := ParseEvent(p.HookEventName); err == nil {
		return string(ev)
	}
	return string(fallback)
}
