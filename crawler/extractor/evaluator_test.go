package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailPage = `
<div class="venser">
  <div class="jdlrx"><h1>Naruto Shippuden Subtitle Indonesia</h1></div>
  <div class="fotoanime"><img src="https://cdn.example.com/naruto.jpg"></div>
  <div class="infozingle">
    <p><span><b>Japanese</b>: ナルト 疾風伝</span></p>
    <p><span><b>Skor</b>: 8.2</span></p>
    <p><span><b>Tanggal Rilis</b>: Feb 15, 2007</span></p>
    <p><span>no separator here</span></p>
  </div>
  <div class="sinopc">
    <p>Naruto returns after two years.</p>
    <p>   </p>
    <p>Akatsuki moves.</p>
  </div>
  <div class="episodelist">
    <ul>
      <li><a href="/episode/naruto-1">Episode 1</a></li>
      <li><a href="/episode/naruto-2">Episode 2</a></li>
      <li><a href="/episode/naruto-3">Episode 3</a></li>
    </ul>
  </div>
</div>`

const episodePage = `
<div class="download">
  <h4>Naruto Episode 1</h4>
  <ul>
    <li><strong>Mp4 360p</strong><a href="https://dl.example.com/a1">Zippy</a><a href="https://dl.example.com/a2">Drive</a></li>
    <li><strong>Mp4 720p</strong><a href="https://dl.example.com/b1">Zippy</a></li>
  </ul>
</div>`

func newTestEvaluator() *Evaluator {
	return NewEvaluator(newTestChain())
}

func TestEvaluateValue(t *testing.T) {
	doc := loadTestDocument(t, detailPage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{
			Key:  "title",
			Path: "//div[@class='jdlrx']/h1",
			Pipes: []PipeSpec{
				{Kind: CleanerRegexReplace, Regex: `\s*Subtitle Indonesia$`, Replacement: ""},
			},
		},
		{
			Key:     "poster",
			Path:    "//div[@class='poster']/img/@src",
			Options: Options{AltPath: "//div[@class='fotoanime']/img/@src"},
		},
		{Key: "missing", Path: "//div[@class='nope']"},
	})

	assert.Equal(t, Value{Text: "Naruto Shippuden", Valid: true}, result["title"])
	assert.Equal(t, "https://cdn.example.com/naruto.jpg", result.String("poster"), "alt path used when primary is empty")
	assert.Equal(t, Value{}, result["missing"])
	assert.False(t, result.Has("missing"))
}

func TestEvaluateKeyValue(t *testing.T) {
	doc := loadTestDocument(t, detailPage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "info", Path: "//div[@class='infozingle']//span", ResultType: ResultKeyValue},
	})

	assert.Equal(t, Pairs{
		{Key: "Japanese", Value: "ナルト 疾風伝"},
		{Key: "Skor", Value: "8.2"},
		{Key: "Tanggal Rilis", Value: "Feb 15, 2007"},
	}, result.Pairs("info"))
}

func TestEvaluateKeyValueCustomSeparator(t *testing.T) {
	doc := loadTestDocument(t, `<ul><li>Status = Ongoing</li><li>Studio = Pierrot: Tokyo</li></ul>`)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "info", Path: "//li", ResultType: ResultKeyValue, Options: Options{Separator: "="}},
	})

	assert.Equal(t, Pairs{
		{Key: "Status", Value: "Ongoing"},
		{Key: "Studio", Value: "Pierrot: Tokyo"},
	}, result.Pairs("info"))
}

func TestEvaluateMultiline(t *testing.T) {
	doc := loadTestDocument(t, detailPage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "synopsis", Path: "//div[@class='sinopc']/p", ResultType: ResultMultiline},
		{
			Key:        "episodes",
			Path:       "//div[@class='episodelist']//a/@href",
			ResultType: ResultMultiline,
			Pipes:      []PipeSpec{{Kind: CleanerPrefix, Replacement: "https://example.com"}},
		},
	})

	assert.Equal(t, Lines{"Naruto returns after two years.", "Akatsuki moves."}, result["synopsis"], "blank lines dropped")
	assert.Equal(t, []string{
		"https://example.com/episode/naruto-1",
		"https://example.com/episode/naruto-2",
		"https://example.com/episode/naruto-3",
	}, result.Strings("episodes"))
}

func TestEvaluateContainerYieldsOneRecordPerNode(t *testing.T) {
	doc := loadTestDocument(t, detailPage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{
			Key:        "episodes",
			Path:       "//div[@class='episodelist']//li",
			ResultType: ResultContainer,
			Patterns: []PatternSpec{
				{Key: "title", Path: "//a"},
				{Key: "url", Path: "//a/@href"},
			},
		},
	})

	records := result.Records("episodes")
	require.Len(t, records, len(doc.Nodes("//div[@class='episodelist']//li")))
	assert.Equal(t, "Episode 2", records[1].String("title"))
	assert.Equal(t, "/episode/naruto-2", records[1].String("url"))
	assert.Equal(t, []string{"/episode/naruto-1", "/episode/naruto-2", "/episode/naruto-3"}, result.Strings("episodes"))
}

func TestEvaluateNestedContainer(t *testing.T) {
	doc := loadTestDocument(t, episodePage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "title", Path: "//div[@class='download']/h4"},
		{
			Key:        "download",
			Path:       "//div[@class='download']//li",
			ResultType: ResultContainer,
			Patterns: []PatternSpec{
				{Key: "resolution", Path: "//strong", Pipes: []PipeSpec{{Kind: CleanerRegexExtract, Regex: `(\d+p)`}}},
				{
					Key:        "list",
					Path:       "//a",
					ResultType: ResultContainer,
					Patterns: []PatternSpec{
						{Key: "title", Path: "."},
						{Key: "url", Path: "@href"},
					},
				},
			},
		},
	})

	assert.Equal(t, "Naruto Episode 1", result.String("title"))

	groups := result.Records("download")
	require.Len(t, groups, 2)
	assert.Equal(t, "360p", groups[0].String("resolution"))
	assert.Equal(t, "720p", groups[1].String("resolution"))

	links := groups[0].Records("list")
	require.Len(t, links, 2)
	assert.Equal(t, "Zippy", links[0].String("title"))
	assert.Equal(t, "https://dl.example.com/a2", links[1].String("url"))
	assert.Len(t, groups[1].Records("list"), 1)
}

func TestEvaluateBadPathIsolated(t *testing.T) {
	doc := loadTestDocument(t, detailPage)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "broken", Path: "//div[@class="},
		{Key: "title", Path: "//h1"},
	})

	assert.False(t, result.Has("broken"))
	assert.True(t, result.Has("title"))
}

func TestEvaluateNullPipeResult(t *testing.T) {
	doc := loadTestDocument(t, `<span class="date">coming soon</span>`)

	result := newTestEvaluator().Evaluate(context.Background(), doc, []PatternSpec{
		{Key: "aired", Path: "//span", Pipes: []PipeSpec{{Kind: CleanerDateNormalize}}},
	})

	assert.Equal(t, Value{Valid: false}, result["aired"])
	assert.Nil(t, result.Map()["aired"])
}

func TestResultMap(t *testing.T) {
	r := Result{
		"title": Value{Text: "Naruto", Valid: true},
		"info":  Pairs{{Key: "Skor", Value: "8.2"}},
		"lines": Lines{"a", "b"},
		"list":  Records{{"url": Value{Text: "/x", Valid: true}}},
	}

	assert.Equal(t, map[string]any{
		"title": "Naruto",
		"info":  map[string]string{"Skor": "8.2"},
		"lines": []string{"a", "b"},
		"list":  []map[string]any{{"url": "/x"}},
	}, r.Map())
}
