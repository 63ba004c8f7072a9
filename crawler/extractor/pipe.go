package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/patrickmn/go-cache"
)

// ErrNullValue is returned by a pipe whose input has no meaningful value,
// e.g. a date-normalize step over text that is not a date. It ends the
// chain with a null result.
var ErrNullValue = errors.New("pipe produced null value")

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PipeChain runs PipeSpecs over matched strings. A failing step is logged
// and skipped, passing its input through unchanged.
type PipeChain struct {
	regexCache *cache.Cache
	dates      *DateNormalizer
	logger     *slog.Logger
}

// PipeOption configures a PipeChain
type PipeOption func(*PipeChain)

// WithDateNormalizer replaces the date-normalize implementation
func WithDateNormalizer(n *DateNormalizer) PipeOption {
	return func(c *PipeChain) {
		c.dates = n
	}
}

// WithPipeLogger sets the logger for step failures
func WithPipeLogger(logger *slog.Logger) PipeOption {
	return func(c *PipeChain) {
		c.logger = logger
	}
}

// NewPipeChain creates a chain with a shared compiled-regex cache
func NewPipeChain(opts ...PipeOption) *PipeChain {
	c := &PipeChain{
		regexCache: cache.New(30*time.Minute, 10*time.Minute),
		dates:      NewDateNormalizer(),
		logger:     logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply feeds input through pipes in order. The bool result is false when
// a step produced a null value.
func (c *PipeChain) Apply(ctx context.Context, input string, pipes []PipeSpec) (string, bool) {
	value := input
	for i, pipe := range pipes {
		out, err := c.applyOne(pipe, value)
		if errors.Is(err, ErrNullValue) {
			return "", false
		}
		if err != nil {
			logging.EnrichLogger(ctx, c.logger).Warn("Pipe failed, passing input through",
				"index", i,
				"kind", pipe.Kind,
				"regex", pipe.Regex,
				"error", err)
			continue
		}
		value = out
	}
	return value, true
}

func (c *PipeChain) applyOne(pipe PipeSpec, input string) (string, error) {
	switch pipe.Kind {
	case CleanerRegexExtract:
		re, err := c.compile(pipe.Regex, pipe.Scope)
		if err != nil {
			return "", err
		}
		return regexExtract(re, input), nil

	case CleanerRegexReplace:
		re, err := c.compile(pipe.Regex, pipe.Scope)
		if err != nil {
			return "", err
		}
		if pipe.Scope.Global() {
			return re.ReplaceAllString(input, pipe.Replacement), nil
		}
		return replaceFirst(re, input, pipe.Replacement), nil

	case CleanerDateNormalize:
		out, ok := c.dates.Normalize(input)
		if !ok {
			return "", ErrNullValue
		}
		return out, nil

	case CleanerTrim:
		return strings.TrimSpace(input), nil

	case CleanerStripTags:
		return normalizeWhitespace(tagPattern.ReplaceAllString(input, " ")), nil

	case CleanerLowercase:
		return strings.ToLower(input), nil

	case CleanerUppercase:
		return strings.ToUpper(input), nil

	case CleanerPrefix:
		return pipe.Replacement + input, nil

	default:
		return "", fmt.Errorf("unknown pipe kind: %s", pipe.Kind)
	}
}

func (c *PipeChain) compile(pattern string, scope Scope) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("regex pattern is required")
	}
	if scope.Multiline() {
		pattern = "(?m)" + pattern
	}

	if cached, ok := c.regexCache.Get(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	c.regexCache.SetDefault(pattern, re)
	return re, nil
}

// regexExtract returns the first participating capture group, the whole
// match when the pattern has no groups, or the input when nothing matches.
func regexExtract(re *regexp.Regexp, input string) string {
	m := re.FindStringSubmatch(input)
	if m == nil {
		return input
	}
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return m[0]
}

func replaceFirst(re *regexp.Regexp, input, replacement string) string {
	loc := re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	expanded := re.ExpandString(nil, replacement, input, loc)
	return input[:loc[0]] + string(expanded) + input[loc[1]:]
}
