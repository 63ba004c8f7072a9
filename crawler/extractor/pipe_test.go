package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestChain() *PipeChain {
	return NewPipeChain(
		WithPipeLogger(logging.Discard()),
		WithDateNormalizer(&DateNormalizer{
			Location: time.UTC,
			Now:      func() time.Time { return fixedNow },
		}),
	)
}

func TestPipeChainRegexExtract(t *testing.T) {
	chain := newTestChain()
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		regex string
		want  string
	}{
		{"first group", "Naruto Episode 12 Subtitle Indonesia", `Episode (\d+)`, "12"},
		{"no match keeps input", "Movie", `Episode (\d+)`, "Movie"},
		{"no group returns whole match", "Score: 8.42", `\d+\.\d+`, "8.42"},
		{"first participating group", "720p", `(1080p)|(720p)`, "720p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chain.Apply(ctx, tt.input, []PipeSpec{{Kind: CleanerRegexExtract, Regex: tt.regex}})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipeChainRegexReplaceScopes(t *testing.T) {
	chain := newTestChain()
	ctx := context.Background()

	tests := []struct {
		name        string
		input       string
		regex       string
		replacement string
		scope       Scope
		want        string
	}{
		{"global", "a-b-c", "-", "_", ScopeGlobal, "a_b_c"},
		{"default scope is global", "a-b-c", "-", "_", "", "a_b_c"},
		{"multiline only replaces first", "a-b-c", "-", "_", ScopeMultiline, "a_b-c"},
		{"global multiline", "line1\nline2", "^line", "L", ScopeGlobalMultiline, "L1\nL2"},
		{"mg equals gm", "line1\nline2", "^line", "L", ScopeMultilineGlobal, "L1\nL2"},
		{"global without multiline anchors input start", "line1\nline2", "^line", "L", ScopeGlobal, "L1\nline2"},
		{"capture references", "Naruto (2002)", `\((\d{4})\)`, "[$1]", ScopeGlobal, "Naruto [2002]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chain.Apply(ctx, tt.input, []PipeSpec{{
				Kind:        CleanerRegexReplace,
				Regex:       tt.regex,
				Replacement: tt.replacement,
				Scope:       tt.scope,
			}})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipeChainFailedPipePassesThrough(t *testing.T) {
	chain := newTestChain()

	got, ok := chain.Apply(context.Background(), "  naruto  ", []PipeSpec{
		{Kind: CleanerTrim},
		{Kind: CleanerRegexReplace, Regex: "(unclosed", Replacement: "x"},
		{Kind: "no-such-kind"},
		{Kind: CleanerUppercase},
	})

	assert.True(t, ok)
	assert.Equal(t, "NARUTO", got, "bad steps are skipped without undoing earlier ones")
}

func TestPipeChainDateNormalize(t *testing.T) {
	chain := newTestChain()
	ctx := context.Background()
	pipes := []PipeSpec{{Kind: CleanerDateNormalize}}

	tests := []struct {
		input string
		want  string
	}{
		{"2024-03-15T08:30:00Z", "2024-03-15 08:30:00"},
		{"2024-03-15 08:30:00", "2024-03-15 08:30:00"},
		{"March 15, 2024", "2024-03-15 00:00:00"},
		{"3 days ago", "2024-03-12 12:00:00"},
		{"an hour ago", "2024-03-15 11:00:00"},
		{"yesterday", "2024-03-14 00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := chain.Apply(ctx, tt.input, pipes)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipeChainDateNormalizeUnparsableIsNull(t *testing.T) {
	chain := newTestChain()

	got, ok := chain.Apply(context.Background(), "sometime soon", []PipeSpec{
		{Kind: CleanerDateNormalize},
		{Kind: CleanerPrefix, Replacement: "never reached "},
	})

	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestPipeChainIdempotence(t *testing.T) {
	chain := newTestChain()
	ctx := context.Background()

	chains := map[string][]PipeSpec{
		"trim and date": {
			{Kind: CleanerTrim},
			{Kind: CleanerDateNormalize},
		},
		"strip tags and lowercase": {
			{Kind: CleanerStripTags},
			{Kind: CleanerLowercase},
		},
		"replace all": {
			{Kind: CleanerRegexReplace, Regex: `\s*Subtitle Indonesia$`, Replacement: "", Scope: ScopeGlobal},
			{Kind: CleanerTrim},
		},
	}
	inputs := []string{"  2024-03-15T08:30:00Z ", " <b>Naruto</b> Shippuden Subtitle Indonesia", "Oct 7, 2023"}

	for name, pipes := range chains {
		for _, in := range inputs {
			once, ok := chain.Apply(ctx, in, pipes)
			if !ok {
				continue
			}
			twice, ok := chain.Apply(ctx, once, pipes)
			assert.True(t, ok, name)
			assert.Equal(t, once, twice, "%s over %q", name, in)
		}
	}
}

func TestPipeChainPrefixIsNotIdempotent(t *testing.T) {
	chain := newTestChain()
	pipes := []PipeSpec{{Kind: CleanerPrefix, Replacement: "https://example.com"}}

	once, _ := chain.Apply(context.Background(), "/anime/1", pipes)
	twice, _ := chain.Apply(context.Background(), once, pipes)
	assert.Equal(t, "https://example.com/anime/1", once)
	assert.NotEqual(t, once, twice)
}

func TestPipeChainNoPipes(t *testing.T) {
	got, ok := newTestChain().Apply(context.Background(), "raw", nil)
	assert.True(t, ok)
	assert.Equal(t, "raw", got)
}
