// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter decides which articles are kept: an abstract filter that
// runs before any download and a full-text filter that runs after. Both
// use case-insensitive regular expressions.
package filter

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// Compile compiles each pattern case-insensitively.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// literalTerms builds one case-insensitive alternation of the escaped
// terms. It returns nil when no term is non-empty.
func literalTerms(terms []string) *regexp.Regexp {
	var quoted []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}

// AbstractFilter matches title and abstract against its patterns.
type AbstractFilter struct {
	Patterns []*regexp.Regexp
	Policy   types.AbstractPolicy
}

// NewAbstractFilter compiles patterns. An empty policy means all.
func NewAbstractFilter(patterns []string, policy types.AbstractPolicy) (*AbstractFilter, error) {
	res, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = types.PolicyAll
	}
	return &AbstractFilter{Patterns: res, Policy: policy}, nil
}

// Match reports whether rec passes. A record without title or abstract
// never passes. With no patterns any record with an abstract passes.
func (f *AbstractFilter) Match(rec types.ArticleRecord) bool {
	if !rec.HasAbstract() {
		return false
	}
	if len(f.Patterns) == 0 {
		return true
	}
	text := rec.Title + "\n" + rec.Abstract
	if f.Policy == types.PolicyAny {
		for _, re := range f.Patterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
	for _, re := range f.Patterns {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

// FullTextResult is the verdict of the full-text filter for one article.
type FullTextResult struct {
	// Matched is true when any pattern matched, or none are configured.
	Matched    bool
	NamesFound bool
	UnitsFound bool
	Pass       bool
}

// FullTextFilter evaluates the combined text of an article's artifacts.
type FullTextFilter struct {
	Patterns []*regexp.Regexp
	Names    *regexp.Regexp
	Units    *regexp.Regexp
	Require  types.FullTextRequirement
}

// NewFullTextFilter builds the filter from cfg. It returns nil when the
// full-text stage is disabled.
func NewFullTextFilter(cfg types.FilterConfig) (*FullTextFilter, error) {
	if !cfg.FullTextEnabled() {
		return nil, nil
	}
	res, err := Compile(cfg.FullTextPatterns)
	if err != nil {
		return nil, err
	}
	return &FullTextFilter{
		Patterns: res,
		Names:    literalTerms(cfg.PropertyNames),
		Units:    literalTerms(cfg.PropertyUnits),
		Require:  cfg.FullText,
	}, nil
}

// Evaluate applies the filter to text. Empty text never passes.
func (f *FullTextFilter) Evaluate(text string) FullTextResult {
	var r FullTextResult
	if strings.TrimSpace(text) == "" {
		return r
	}
	r.Matched = len(f.Patterns) == 0
	for _, re := range f.Patterns {
		if re.MatchString(text) {
			r.Matched = true
			break
		}
	}
	r.NamesFound = f.Names != nil && f.Names.MatchString(text)
	r.UnitsFound = f.Units != nil && f.Units.MatchString(text)

	switch f.Require {
	case types.RequireNames:
		r.Pass = r.Matched && r.NamesFound
	case types.RequireUnits:
		r.Pass = r.Matched && r.UnitsFound
	case types.RequireNamesUnits:
		r.Pass = r.Matched && r.NamesFound && r.UnitsFound
	default:
		r.Pass = r.Matched
	}
	return r
}

// LoadPatternFile reads a YAML list of patterns, either a bare sequence or
// a mapping with a "patterns" key.
func LoadPatternFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Patterns []string `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pattern file %s: %w", path, err)
	}
	return doc.Patterns, nil
}
