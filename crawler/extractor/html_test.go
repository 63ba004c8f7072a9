package extractor

import (
	"testing"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `
<div class="list">
  <a class="entry" href="/anime/naruto">Naruto</a>
  <a class="entry" href="/anime/bleach">Bleach</a>
  <a class="entry" href="/anime/one-piece">One   Piece</a>
  <a class="other" href="/about">About</a>
</div>
<h1>
   Ongoing
   Anime
</h1>`

func loadTestDocument(t *testing.T, content string, opts ...DocumentOption) *Document {
	t.Helper()
	doc, err := Load(content, append([]DocumentOption{WithDocumentLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	return doc
}

func TestDocumentGetAll(t *testing.T) {
	doc := loadTestDocument(t, indexPage)

	assert.Equal(t,
		[]string{"/anime/naruto", "/anime/bleach", "/anime/one-piece"},
		doc.GetAll("//a[@class='entry']/@href"))

	assert.Equal(t,
		[]string{"Naruto", "Bleach", "One Piece"},
		doc.GetAll("//a[@class='entry']"),
		"whitespace runs collapse")

	assert.Empty(t, doc.GetAll("//table"))
}

func TestDocumentGetOne(t *testing.T) {
	doc := loadTestDocument(t, indexPage)

	got, ok := doc.GetOne("//h1")
	assert.True(t, ok)
	assert.Equal(t, "Ongoing Anime", got)

	_, ok = doc.GetOne("//h2")
	assert.False(t, ok)
}

func TestDocumentPreserveWhitespace(t *testing.T) {
	doc := loadTestDocument(t, `<p>  a
  b </p>`, PreserveWhitespace())

	got, ok := doc.GetOne("//p")
	require.True(t, ok)
	assert.Equal(t, "  a\n  b ", got)
}

func TestDocumentInvalidPath(t *testing.T) {
	doc := loadTestDocument(t, indexPage)

	assert.NotPanics(t, func() {
		assert.Empty(t, doc.GetAll("//a[@class="))
		assert.Empty(t, doc.Nodes("///"))
		_, ok := doc.GetOne("")
		assert.False(t, ok)
	})
}

func TestDocumentScalarExpressions(t *testing.T) {
	doc := loadTestDocument(t, indexPage)

	got, ok := doc.GetOne("normalize-space(//h1)")
	assert.True(t, ok)
	assert.Equal(t, "Ongoing Anime", got)

	got, ok = doc.GetOne("count(//a[@class='entry'])")
	assert.True(t, ok)
	assert.Equal(t, "3", got)
}

func TestDocumentScope(t *testing.T) {
	doc := loadTestDocument(t, `
<ul>
  <li><a href="/e/1">Episode 1</a></li>
  <li><a href="/e/2">Episode 2</a></li>
</ul>`)

	nodes := doc.Nodes("//li")
	require.Len(t, nodes, 2)

	second := doc.Scope(nodes[1])
	assert.Equal(t, []string{"/e/2"}, second.GetAll("//a/@href"), "absolute paths stay inside the scoped subtree")
}
