package rules

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Patterns holds extra trigger strings organized by category, as read from
// a rules YAML file.
type Patterns struct {
	Suggestion     []string `yaml:"suggestion"`
	Delegation     []string `yaml:"delegation"`
	ScopeReduction []string `yaml:"scope_reduction"`
	Placeholder    []string `yaml:"placeholder"`
	Dangerous      []string `yaml:"dangerous"`
}

// Rules converts the category lists into rule-table entries, appended after
// the built-in table so built-in ordering is stable.
func (p Patterns) Rules() []Rule {
	var out []Rule
	add := func(patterns []string, t IssueType) {
		for _, pat := range patterns {
			if pat == "" {
				continue
			}
			out = append(out, Rule{Pattern: pat, Type: t})
		}
	}
	add(p.Suggestion, Suggestion)
	add(p.Delegation, Delegation)
	add(p.ScopeReduction, ScopeReduction)
	add(p.Placeholder, Placeholder)
	add(p.Dangerous, DangerousCommand)
	return out
}

// Load reads a rules YAML file and returns an Engine combining the built-in
// table with the file's extra patterns. If path is empty, the default
// location is tried. A missing file falls back to the default engine.
func Load(path string) (*Engine, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(home, ".hookwatch", "rules.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return NewEngine(append(DefaultRules(), p.Rules()...)), nil
}
