package extractor

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Document is a parsed page queried with XPath expressions. Query errors
// are logged and treated as no-match so one bad path never aborts an
// extraction.
type Document struct {
	root               *html.Node
	preserveWhitespace bool
	logger             *slog.Logger
}

// DocumentOption configures a Document
type DocumentOption func(*Document)

// PreserveWhitespace keeps matched text exactly as found
func PreserveWhitespace() DocumentOption {
	return func(d *Document) {
		d.preserveWhitespace = true
	}
}

// WithDocumentLogger sets the logger for query failures
func WithDocumentLogger(logger *slog.Logger) DocumentOption {
	return func(d *Document) {
		d.logger = logger
	}
}

// Load parses sanitized markup into a Document
func Load(content string, opts ...DocumentOption) (*Document, error) {
	root, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for XPath: %w", err)
	}
	return newDocument(root, opts...), nil
}

func newDocument(root *html.Node, opts ...DocumentOption) *Document {
	d := &Document{
		root:   root,
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetOne returns the first match of path
func (d *Document) GetOne(path string) (string, bool) {
	all := d.GetAll(path)
	if len(all) == 0 {
		return "", false
	}
	return all[0], true
}

// GetAll returns every match of path in document order. Node matches are
// reduced to their text; scalar expressions such as normalize-space(...)
// yield a single match.
func (d *Document) GetAll(path string) []string {
	nodes, scalar, err := d.query(path)
	if err != nil {
		d.logger.Warn("XPath query failed", "path", path, "error", err)
		return nil
	}
	if scalar != nil {
		return []string{d.normalize(*scalar)}
	}

	results := make([]string, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, d.normalize(htmlquery.InnerText(node)))
	}
	return results
}

// Nodes returns the element nodes matched by path
func (d *Document) Nodes(path string) []*html.Node {
	nodes, _, err := d.query(path)
	if err != nil {
		d.logger.Warn("XPath query failed", "path", path, "error", err)
		return nil
	}
	return nodes
}

// Scope returns a document rooted at node. Absolute paths evaluated against
// it resolve from node, so "//a" only sees the node and its descendants.
func (d *Document) Scope(node *html.Node) *Document {
	return &Document{
		root:               node,
		preserveWhitespace: d.preserveWhitespace,
		logger:             d.logger,
	}
}

func (d *Document) query(path string) (nodes []*html.Node, scalar *string, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes, scalar, err = nil, nil, fmt.Errorf("xpath evaluation panicked: %v", r)
		}
	}()

	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, nil, err
	}

	switch v := expr.Evaluate(htmlquery.CreateXPathNavigator(d.root)).(type) {
	case *xpath.NodeIterator:
		for v.MoveNext() {
			nav, ok := v.Current().(*htmlquery.NodeNavigator)
			if !ok {
				continue
			}
			if nav.NodeType() == xpath.AttributeNode {
				nodes = append(nodes, attributeNode(nav.LocalName(), nav.Value()))
				continue
			}
			nodes = append(nodes, nav.Current())
		}
		return nodes, nil, nil
	case string:
		if v == "" {
			return nil, nil, nil
		}
		return nil, &v, nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return nil, &s, nil
	case bool:
		s := strconv.FormatBool(v)
		return nil, &s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported xpath result %T", v)
	}
}

// attributeNode wraps an attribute value so it reduces to text like any other match
func attributeNode(name, value string) *html.Node {
	text := &html.Node{Type: html.TextNode, Data: value}
	n := &html.Node{Type: html.ElementNode, Data: name, FirstChild: text, LastChild: text}
	text.Parent = n
	return n
}

func (d *Document) normalize(s string) string {
	if d.preserveWhitespace {
		return s
	}
	return normalizeWhitespace(s)
}

// normalizeWhitespace collapses whitespace runs to one space and trims
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
