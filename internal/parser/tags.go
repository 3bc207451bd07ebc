package parser

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tags.yaml
var defaultTagRules []byte

const (
	CategoryStage    = "stage"
	CategoryIndustry = "industry"
	CategoryFormat   = "format"
)

type TagRule struct {
	Tag      string   `yaml:"tag"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type tagRulesFile struct {
	Rules []TagRule `yaml:"rules"`
}

type compiledRule struct {
	TagRule
	re *regexp.Regexp
}

// Tagger assigns taxonomy tags to event text by keyword rules.
type Tagger struct {
	rules []compiledRule
}

// NewTagger compiles tag rules from YAML.
func NewTagger(data []byte) (*Tagger, error) {
	var f tagRulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tag rules: %w", err)
	}

	t := &Tagger{}
	for i, r := range f.Rules {
		if r.Tag == "" || len(r.Keywords) == 0 {
			return nil, fmt.Errorf("tag rule %d: tag and keywords are required", i)
		}
		alts := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if p := keywordExpr(kw); p != "" {
				alts = append(alts, p)
			}
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("tag rule %q: %w", r.Tag, err)
		}
		t.rules = append(t.rules, compiledRule{TagRule: r, re: re})
	}
	return t, nil
}

// LoadTagger reads rules from path, or the built-in rules when path is empty.
func LoadTagger(path string) (*Tagger, error) {
	if path == "" {
		return NewTagger(defaultTagRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag rules: %w", err)
	}
	return NewTagger(data)
}

// DefaultTagger returns a Tagger over the built-in rules.
func DefaultTagger() *Tagger {
	t, err := NewTagger(defaultTagRules)
	if err != nil {
		panic(err)
	}
	return t
}

// keywordExpr quotes kw, letting any run of spaces or hyphens match either.
func keywordExpr(kw string) string {
	parts := strings.FieldsFunc(strings.ToLower(kw), func(r rune) bool {
		return r == ' ' || r == '-'
	})
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `[\s-]+`)
}

// Tags returns the tags whose keywords appear in text, in rule order.
func (t *Tagger) Tags(text string) []string {
	tags := []string{}
	for _, r := range t.rules {
		if r.re.MatchString(text) {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}

// InCategory filters tags down to those defined under category.
func (t *Tagger) InCategory(tags []string, category string) []string {
	var out []string
	for _, tag := range tags {
		for _, r := range t.rules {
			if r.Tag == tag && r.Category == category {
				out = append(out, tag)
				break
			}
		}
	}
	return out
}
