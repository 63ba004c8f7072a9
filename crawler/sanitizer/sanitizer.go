// Package sanitizer cleans crawled markup before it is queried. It never
// drops text content: elements outside the HTML5 allow-list are unwrapped
// and their children spliced into the parent.
package sanitizer

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var styleAttrPattern = regexp.MustCompile(`(?i)\s+style\s*=\s*("[^"]*"|'[^']*')`)

// html5Elements is the allow-list of element names kept as-is.
var html5Elements = map[string]struct{}{}

func init() {
	for _, tag := range strings.Fields(`
		a abbr address area article aside audio b base bdi bdo blockquote body br button
		canvas caption cite code col colgroup data datalist dd del details dfn dialog div dl dt
		em embed fieldset figcaption figure footer form h1 h2 h3 h4 h5 h6 head header hgroup hr
		html i iframe img input ins kbd label legend li link main map mark menu meta meter nav
		noscript object ol optgroup option output p param picture pre progress q rp rt ruby s
		samp script search section select slot small source span strong style sub summary sup
		table tbody td template textarea tfoot th thead time title tr track u ul var video wbr
		svg math`) {
		html5Elements[tag] = struct{}{}
	}
}

// Sanitizer strips inline styles and unwraps non-HTML5 elements
type Sanitizer struct {
	logger  *slog.Logger
	allowed map[string]struct{}
}

// Option configures a Sanitizer
type Option func(*Sanitizer)

// WithLogger sets the logger used for fail-open warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sanitizer) {
		s.logger = logger
	}
}

// WithExtraElements extends the allow-list, e.g. for site specific custom elements
func WithExtraElements(tags ...string) Option {
	return func(s *Sanitizer) {
		for _, tag := range tags {
			s.allowed[strings.ToLower(tag)] = struct{}{}
		}
	}
}

// New creates a sanitizer with the HTML5 allow-list
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		logger:  logging.GetLogger(),
		allowed: make(map[string]struct{}, len(html5Elements)),
	}
	for tag := range html5Elements {
		s.allowed[tag] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize returns the cleaned contents of <body>. On any failure it logs
// and returns the best input it has, so callers always get something to query.
func (s *Sanitizer) Sanitize(raw string) string {
	stripped := StripStyles(raw)

	doc, err := html.Parse(strings.NewReader(stripped))
	if err != nil {
		s.logger.Warn("Failed to parse HTML, returning unsanitized content", "error", err)
		return stripped
	}

	s.unwrapInvalid(doc)

	body, err := bodyHTML(doc)
	if err != nil {
		s.logger.Warn("Failed to serialize sanitized HTML, returning unsanitized content", "error", err)
		return stripped
	}

	return strings.TrimSpace(body)
}

// StripStyles removes every inline style attribute
func StripStyles(raw string) string {
	return styleAttrPattern.ReplaceAllString(raw, "")
}

// unwrapInvalid cleans children first so that grandchildren hoisted out of
// an invalid wrapper have already been processed.
func (s *Sanitizer) unwrapInvalid(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		s.unwrapInvalid(c)
		if c.Type == html.ElementNode && !s.isAllowed(c.Data) {
			for gc := c.FirstChild; gc != nil; {
				gcNext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gcNext
			}
			n.RemoveChild(c)
		}
		c = next
	}
}

func (s *Sanitizer) isAllowed(tag string) bool {
	_, ok := s.allowed[strings.ToLower(tag)]
	return ok
}

func bodyHTML(doc *html.Node) (string, error) {
	body := goquery.NewDocumentFromNode(doc).Find("body").First()
	if body.Length() == 0 {
		return "", fmt.Errorf("document has no body")
	}
	return body.Html()
}
