package extractor

import (
	"fmt"
	"strings"
)

// ResultType selects how the matches of a pattern are shaped
type ResultType string

const (
	ResultValue     ResultType = "value"
	ResultKeyValue  ResultType = "key_value"
	ResultMultiline ResultType = "multiline"
	ResultContainer ResultType = "container"
)

// CleanerType is the kind of a pipe step
type CleanerType string

const (
	CleanerRegexExtract  CleanerType = "regex-extract"
	CleanerRegexReplace  CleanerType = "regex-replace"
	CleanerDateNormalize CleanerType = "date-normalize"
	CleanerTrim          CleanerType = "trim"
	CleanerStripTags     CleanerType = "strip-tags"
	CleanerLowercase     CleanerType = "lowercase"
	CleanerUppercase     CleanerType = "uppercase"
	CleanerPrefix        CleanerType = "prefix"
)

// Scope controls the regex flags of a pipe step
type Scope string

const (
	ScopeGlobal          Scope = "g"
	ScopeMultiline       Scope = "m"
	ScopeGlobalMultiline Scope = "gm"
	ScopeMultilineGlobal Scope = "mg"
)

// Global reports whether every occurrence is replaced
func (s Scope) Global() bool {
	return s == "" || strings.Contains(string(s), "g")
}

// Multiline reports whether ^ and $ match at line boundaries
func (s Scope) Multiline() bool {
	return strings.Contains(string(s), "m")
}

// PipeSpec is one transform step applied to a matched string
type PipeSpec struct {
	Kind        CleanerType `json:"kind" yaml:"kind"`
	Regex       string      `json:"regex,omitempty" yaml:"regex,omitempty"`
	Replacement string      `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Scope       Scope       `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Options holds optional pattern behaviour
type Options struct {
	// AltPath is evaluated when Path yields nothing
	AltPath string `json:"alt_path,omitempty" yaml:"alt_path,omitempty"`

	// BatchInDetail marks batch download links that live on the detail page
	BatchInDetail bool `json:"batch_in_detail,omitempty" yaml:"batch_in_detail,omitempty"`

	// Separator splits key_value matches, ":" when empty
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// PatternSpec describes how to locate and shape one field of a document
type PatternSpec struct {
	Key        string        `json:"key" yaml:"key"`
	Path       string        `json:"path" yaml:"path"`
	ResultType ResultType    `json:"result_type,omitempty" yaml:"result_type,omitempty"`
	Options    Options       `json:"options,omitempty" yaml:"options,omitempty"`
	Pipes      []PipeSpec    `json:"pipes,omitempty" yaml:"pipes,omitempty"`
	Patterns   []PatternSpec `json:"patterns,omitempty" yaml:"patterns,omitempty"` // container children
}

// Shape returns the result type, defaulting to value
func (p PatternSpec) Shape() ResultType {
	if p.ResultType == "" {
		return ResultValue
	}
	return p.ResultType
}

// Validate checks a pattern list: keys unique, paths non-empty, known
// result types, and containers carrying nested patterns.
func Validate(specs []PatternSpec) error {
	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		if spec.Key == "" {
			return fmt.Errorf("pattern %d: key is empty", i)
		}
		if _, dup := seen[spec.Key]; dup {
			return fmt.Errorf("pattern %q: duplicate key", spec.Key)
		}
		seen[spec.Key] = struct{}{}

		if strings.TrimSpace(spec.Path) == "" {
			return fmt.Errorf("pattern %q: path is empty", spec.Key)
		}

		switch spec.Shape() {
		case ResultValue, ResultKeyValue, ResultMultiline:
		case ResultContainer:
			if len(spec.Patterns) == 0 {
				return fmt.Errorf("pattern %q: container without nested patterns", spec.Key)
			}
			if err := Validate(spec.Patterns); err != nil {
				return fmt.Errorf("pattern %q: %w", spec.Key, err)
			}
		default:
			return fmt.Errorf("pattern %q: unknown result type %q", spec.Key, spec.ResultType)
		}
	}
	return nil
}

// HasBatchInDetail reports whether any pattern expects batch links on the detail page
func HasBatchInDetail(specs []PatternSpec) bool {
	for _, spec := range specs {
		if spec.Options.BatchInDetail {
			return true
		}
	}
	return false
}
