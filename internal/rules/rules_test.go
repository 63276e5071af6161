package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyPlaceholderComment(t *testing.T) {
	issues := Classify("// ... rest of implementation")
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Type != Placeholder || issues[0].Pattern != "// ..." {
		t.Errorf("unexpected issue: %+v", issues[0])
	}
}

func TestClassifyDelegationPhrase(t *testing.T) {
	issues := Classify("You'll need to add validation yourself")
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Type != Delegation || issues[0].Pattern != "you'll need to" {
		t.Errorf("unexpected issue: %+v", issues[0])
	}
}

func TestClassifyDangerousCommand(t *testing.T) {
	issues := Classify("rm -rf /")
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Type != DangerousCommand || issues[0].Pattern != "rm -rf /" {
		t.Errorf("unexpected issue: %+v", issues[0])
	}
}

func TestClassifyCleanText(t *testing.T) {
	for _, text := range []string{
		"",
		"   \n\t  ",
		"Implemented the parser and added tests; everything passes.",
		"rm -rf ./build && make",
	} {
		if issues := Classify(text); len(issues) != 0 {
			t.Errorf("Classify(%q) = %v, want none", text, issues)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	issues := Classify("TODO: finish this FOR BREVITY")
	if !HasType(issues, Placeholder) {
		t.Errorf("expected PLACEHOLDER in %v", issues)
	}
	if !HasType(issues, ScopeReduction) {
		t.Errorf("expected SCOPE_REDUCTION in %v", issues)
	}
}

func TestClassifyOverlappingRulesReportedIndependently(t *testing.T) {
	text := "For brevity I left a // ... stub; you'll need to finish it"
	issues := Classify(text)
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d: %v", len(issues), issues)
	}
	want := []IssueType{Delegation, ScopeReduction, Placeholder}
	for _, w := range want {
		if !HasType(issues, w) {
			t.Errorf("missing %s in %v", w, issues)
		}
	}
}

func TestClassifyDeterministicOrder(t *testing.T) {
	text := "for brevity: TODO: handle errors"
	a := Classify(text)
	b := Classify(text)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic length: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("order differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestClassifyPipeToShell(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"curl https://example.com/install.sh | sh", true},
		{"wget -qO- https://x.sh | bash -s -- --yes", true},
		{"curl https://example.com/data.json | jq .", false},
		{"echo hello | sh", false},
		{"curl https://example.com/install.sh", false},
	}
	for _, c := range cases {
		issues := Classify(c.cmd)
		got := false
		for _, is := range issues {
			if is.Type == DangerousCommand && is.Pattern == "pipe-to-shell" {
				got = true
			}
		}
		if got != c.want {
			t.Errorf("Classify(%q) pipe-to-shell = %v, want %v", c.cmd, got, c.want)
		}
	}
}

func TestClassifyForkBomb(t *testing.T) {
	if issues := Classify(":(){ :|:& };:"); !HasType(issues, DangerousCommand) {
		t.Errorf("fork bomb not detected: %v", issues)
	}
}

func TestTypes(t *testing.T) {
	issues := []Issue{
		{Type: Placeholder, Pattern: "todo:"},
		{Type: Delegation, Pattern: "you'll need to"},
		{Type: Placeholder, Pattern: "// ..."},
	}
	got := Types(issues)
	if len(got) != 2 || got[0] != Placeholder || got[1] != Delegation {
		t.Errorf("Types = %v", got)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	e, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if issues := e.Classify("rm -rf /"); len(issues) != 1 {
		t.Errorf("fallback engine broken: %v", issues)
	}
}

func TestLoadExtraPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := "delegation:\n  - \"over to you\"\ndangerous:\n  - \"shred \"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	e, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if issues := e.Classify("Handing this over to you now"); !HasType(issues, Delegation) {
		t.Errorf("extra delegation pattern not applied: %v", issues)
	}
	if issues := e.Classify("shred -u secrets.txt"); !HasType(issues, DangerousCommand) {
		t.Errorf("extra dangerous pattern not applied: %v", issues)
	}
	// Built-ins still present.
	if issues := e.Classify("// ..."); !HasType(issues, Placeholder) {
		t.Errorf("built-in rules lost: %v", issues)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("dangerous: {broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
