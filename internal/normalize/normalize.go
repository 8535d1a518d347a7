// Package normalize decides whether a raw text fragment is a plausible prompt
// and returns its cleaned form.
//
// Cleaning is driven by an ordered rule list loaded from YAML. The default
// rule set is embedded; a rule file on disk can replace it.
package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// DefaultMinLength is the minimum prompt length in characters.
const DefaultMinLength = 15

// Action is what a rule does when it applies.
type Action string

const (
	ActionStrip     Action = "strip"
	ActionReject    Action = "reject"
	ActionMinLength Action = "min_length"
	ActionUnquote   Action = "unquote"
)

// Rule is one step of the cleaning pipeline.
type Rule struct {
	re      *regexp.Regexp
	Name    string `yaml:"name"`
	Action  Action `yaml:"action"`
	Pattern string `yaml:"pattern,omitempty"`
	Min     int    `yaml:"min,omitempty"`
}

// RuleSet is the YAML document holding the rules.
type RuleSet struct {
	Rules     []Rule `yaml:"rules"`
	MinLength int    `yaml:"min_length"`
}

// Result describes what happened to one input.
type Result struct {
	Text     string
	RuleName string // rule that rejected the input, empty when accepted
	Accepted bool
}

// Normalizer applies a compiled rule set. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	rules     []Rule
	minLength int
}

// New compiles a rule set.
func New(rs RuleSet) (*Normalizer, error) {
	minLength := rs.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	rules := make([]Rule, 0, len(rs.Rules))
	for i, r := range rs.Rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		switch r.Action {
		case ActionStrip, ActionReject:
			if r.Pattern == "" {
				return nil, fmt.Errorf("rule %q: %s requires a pattern", r.Name, r.Action)
			}
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compile pattern: %w", r.Name, err)
			}
			r.re = re
		case ActionMinLength:
			if r.Min <= 0 {
				r.Min = minLength
			}
		case ActionUnquote:
		default:
			return nil, fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
		}
		rules = append(rules, r)
	}

	return &Normalizer{rules: rules, minLength: minLength}, nil
}

// Parse builds a Normalizer from YAML rule data.
func Parse(data []byte) (*Normalizer, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("parse rules: no rules defined")
	}
	return New(rs)
}

// Load reads a rule file. An empty path or a missing file yields the default
// rule set.
func Load(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Default returns the embedded rule set.
func Default() *Normalizer {
	n, err := Parse(defaultRules)
	if err != nil {
		panic("normalize: embedded rules are invalid: " + err.Error())
	}
	return n
}

// DefaultRules returns the embedded YAML so it can be exported and edited.
func DefaultRules() []byte {
	return append([]byte(nil), defaultRules...)
}

// Rules returns the names of the compiled rules in order.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}

// Normalize returns the cleaned text and true, or "" and false when the input
// is rejected.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	res := n.Apply(raw)
	return res.Text, res.Accepted
}

// Apply runs every rule in order and reports which rule rejected the input.
func (n *Normalizer) Apply(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{RuleName: "empty"}
	}

	for _, r := range n.rules {
		switch r.Action {
		case ActionStrip:
			if loc := r.re.FindStringIndex(text); loc != nil && loc[0] == 0 {
				text = strings.TrimSpace(text[loc[1]:])
			}
		case ActionReject:
			if r.re.MatchString(text) {
				return Result{RuleName: r.Name}
			}
		case ActionMinLength:
			if utf8.RuneCountInString(text) < r.Min {
				return Result{RuleName: r.Name}
			}
		case ActionUnquote:
			if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
				text = strings.TrimSpace(text[1 : len(text)-1])
			}
		}
	}

	if text == "" {
		return Result{RuleName: "empty"}
	}
	return Result{Text: text, Accepted: true}
}
