// Package rules implements the pattern rule engine. A fixed ordered table
// of trigger patterns classifies a text blob into typed issues: lazy
// phrasing, placeholder code, and dangerous command strings. The same
// engine runs inside the session watcher and in the hook clients' fallback
// path, so results are identical regardless of delivery path.
package rules

import "strings"

// IssueType classifies a detected pattern.
type IssueType string

const (
	Suggestion       IssueType = "SUGGESTION"
	Delegation       IssueType = "DELEGATION"
	ScopeReduction   IssueType = "SCOPE_REDUCTION"
	Placeholder      IssueType = "PLACEHOLDER"
	DangerousCommand IssueType = "DANGEROUS_COMMAND"
)

// Issue is one detected rule match: the category and the trigger that fired.
type Issue struct {
	Type    IssueType `json:"type"`
	Pattern string    `json:"pattern"`
}

// Rule matches a trigger substring (case-insensitive) and yields an issue
// of its type.
type Rule struct {
	Pattern string
	Type    IssueType
}

// DefaultRules returns the built-in rule table, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		// Suggestion: the assistant proposes instead of doing.
		{Pattern: "you could", Type: Suggestion},
		{Pattern: "you can simply", Type: Suggestion},
		{Pattern: "you may want to", Type: Suggestion},
		{Pattern: "you might want to", Type: Suggestion},
		{Pattern: "consider adding", Type: Suggestion},
		{Pattern: "consider using", Type: Suggestion},
		{Pattern: "it would be a good idea to", Type: Suggestion},

		// Delegation: work handed back to the user.
		{Pattern: "you'll need to", Type: Delegation},
		{Pattern: "you will need to", Type: Delegation},
		{Pattern: "you'll have to", Type: Delegation},
		{Pattern: "you will have to", Type: Delegation},
		{Pattern: "you can add", Type: Delegation},
		{Pattern: "left for you", Type: Delegation},
		{Pattern: "up to you to", Type: Delegation},
		{Pattern: "on your own", Type: Delegation},

		// Scope reduction: silently shrinking the task.
		{Pattern: "for brevity", Type: ScopeReduction},
		{Pattern: "for simplicity", Type: ScopeReduction},
		{Pattern: "to keep it simple", Type: ScopeReduction},
		{Pattern: "left as an exercise", Type: ScopeReduction},
		{Pattern: "simplified version", Type: ScopeReduction},
		{Pattern: "in a real implementation", Type: ScopeReduction},
		{Pattern: "in production you would", Type: ScopeReduction},
		{Pattern: "beyond the scope", Type: ScopeReduction},

		// Placeholder code.
		{Pattern: "// ...", Type: Placeholder},
		{Pattern: "# ...", Type: Placeholder},
		{Pattern: "/* ... */", Type: Placeholder},
		{Pattern: "todo:", Type: Placeholder},
		{Pattern: "fixme", Type: Placeholder},
		{Pattern: "xxx:", Type: Placeholder},
		{Pattern: "unimplemented", Type: Placeholder},
		{Pattern: "not yet implemented", Type: Placeholder},
		{Pattern: "notimplementederror", Type: Placeholder},
		{Pattern: "implementation goes here", Type: Placeholder},
		{Pattern: "your code here", Type: Placeholder},

		// Dangerous commands. Matched against shell command text; targeted
		// patterns so a scoped "rm -rf ./build" does not fire.
		{Pattern: "rm -rf /", Type: DangerousCommand},
		{Pattern: "rm -rf ~", Type: DangerousCommand},
		{Pattern: "rm -rf *", Type: DangerousCommand},
		{Pattern: "rm -rf $home", Type: DangerousCommand},
		{Pattern: "sudo rm", Type: DangerousCommand},
		{Pattern: "chmod 777 /", Type: DangerousCommand},
		{Pattern: "chmod -r 777", Type: DangerousCommand},
		{Pattern: "dd if=/dev/zero of=/dev/", Type: DangerousCommand},
		{Pattern: "dd if=/dev/random of=/dev/", Type: DangerousCommand},
		{Pattern: "> /dev/sd", Type: DangerousCommand},
		{Pattern: "mkfs.", Type: DangerousCommand},
		{Pattern: ":(){", Type: DangerousCommand},
		{Pattern: ":|:&", Type: DangerousCommand},
		{Pattern: "git push --force origin main", Type: DangerousCommand},
		{Pattern: "git push --force origin master", Type: DangerousCommand},
	}
}

// pipeToShellPattern is the synthetic pattern reported for structural
// pipe-to-shell detection, which has no single trigger substring.
const pipeToShellPattern = "pipe-to-shell"

// Engine classifies text blobs against an ordered rule table.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine with the given rule table.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Default returns an Engine with the built-in rule table.
func Default() *Engine {
	return NewEngine(DefaultRules())
}

// Classify runs every rule against the text and returns all matches in
// table order. No rule short-circuits another; distinct rules matching the
// same span are each reported. A rule yields at most one issue per call;
// the issue carries the trigger, not the span, so repeated hits of one rule
// collapse naturally. Empty or whitespace-only input yields nil.
func (e *Engine) Classify(text string) []Issue {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var issues []Issue
	for _, r := range e.rules {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			issues = append(issues, Issue{Type: r.Type, Pattern: r.Pattern})
		}
	}

	// Structural check: curl|sh and friends have no fixed substring.
	if isPipeToShell(lower) {
		issues = append(issues, Issue{Type: DangerousCommand, Pattern: pipeToShellPattern})
	}

	return issues
}

// Classify runs the default engine. Convenience for one-shot callers.
func Classify(text string) []Issue {
	return Default().Classify(text)
}

// HasType reports whether any issue in the slice has the given type.
func HasType(issues []Issue, t IssueType) bool {
	for _, is := range issues {
		if is.Type == t {
			return true
		}
	}
	return false
}

// Types returns the distinct issue types present, in first-seen order.
func Types(issues []Issue) []IssueType {
	var out []IssueType
	seen := make(map[IssueType]bool)
	for _, is := range issues {
		if !seen[is.Type] {
			seen[is.Type] = true
			out = append(out, is.Type)
		}
	}
	return out
}

// isPipeToShell detects curl|sh, wget|bash, etc.
func isPipeToShell(cmd string) bool {
	if !strings.Contains(cmd, "|") {
		return false
	}
	shells := []string{"sh", "bash", "zsh", "fish"}
	downloaders := []string{"curl", "wget"}

	hasDownloader := false
	for _, d := range downloaders {
		if strings.Contains(cmd, d) {
			hasDownloader = true
			break
		}
	}
	if !hasDownloader {
		return false
	}

	parts := strings.Split(cmd, "|")
	for i := 1; i < len(parts); i++ {
		trimmed := strings.TrimSpace(parts[i])
		for _, s := range shells {
			if trimmed == s || strings.HasPrefix(trimmed, s+" ") {
				return true
			}
		}
	}
	return false
}
