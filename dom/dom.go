// Package dom provides the in-memory HTML document the toolkit wires
// plugins against: parsing, rendering, a simple CSS selector subset,
// form value extraction, and structural mutation with change
// notification.
//
// A Document owns a golang.org/x/net/html node tree. Every structural
// mutation performed through Document methods (append, remove, set
// inner HTML) is reported as a Batch to the single registered observer,
// mirroring a platform subtree-mutation subscription. Observation is
// synchronous: the observer runs before the mutating call returns.
//
// A Document is owned by one goroutine at a time. Mutation delivery is
// deliberately re-entrant: an observer may itself mutate the document,
// which delivers a fresh batch before the outer call completes.
package dom

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrObserverSet is returned by Observe when a subscription already exists.
// A document carries at most one subtree observer for its whole lifetime.
var ErrObserverSet = errors.New("dom: mutation observer already registered")

// Record describes one atomic tree change: nodes added to and removed
// from a single container. Records are transient; observers must not
// retain them beyond the callback.
type Record struct {
	Added   []*html.Node
	Removed []*html.Node
	// Target is the container the change happened in (the parent of the
	// added/removed nodes), never the added node itself.
	Target *html.Node
}

// Batch is one atomic notification of tree changes.
type Batch []Record

// Document is a mutable HTML document with mutation observation.
type Document struct {
	root     *html.Node
	url      *url.URL
	observer func(Batch)
}

// Parse builds a Document from an HTML source and the page URL the
// document was loaded from. The URL seeds default request targets and
// the origin marker.
func Parse(src, pageURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Document{root: root, url: u}, nil
}

// Observe registers the document's single mutation observer.
func (d *Document) Observe(fn func(Batch)) error {
	if d.observer != nil {
		return ErrObserverSet
	}
	d.observer = fn
	return nil
}

func (d *Document) emit(b Batch) {
	if d.observer != nil && len(b) > 0 {
		d.observer(b)
	}
}

// URL returns the full page URL.
func (d *Document) URL() string { return d.url.String() }

// Path returns the page path, the default target for requests that name
// no other URL.
func (d *Document) Path() string {
	if d.url.Path == "" {
		return "/"
	}
	return d.url.Path
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the document's body element, or the root if the parsed
// tree has none.
func (d *Document) Body() *html.Node {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.root
	}
	return body
}

// QuerySelectorAll returns all elements in the document matching the
// selector, in tree order.
func (d *Document) QuerySelectorAll(selector string) []*html.Node {
	return Query(d.root, selector)
}

// AppendChild attaches n as the last child of parent and notifies the
// observer.
func (d *Document) AppendChild(parent, n *html.Node) {
	detach(n)
	parent.AppendChild(n)
	d.emit(Batch{{Added: []*html.Node{n}, Target: parent}})
}

// AppendHTML parses fragment in the context of parent, appends the
// resulting nodes, and notifies the observer with one record covering
// the whole insertion. The appended nodes are returned.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := parseFragment(parent, fragment)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.emit(Batch{{Added: nodes, Target: parent}})
	return nodes, nil
}

// SetInnerHTML replaces n's children with the parsed fragment. Removal
// and insertion are reported in a single record.
func (d *Document) SetInnerHTML(n *html.Node, fragment string) error {
	nodes, err := parseFragment(n, fragment)
	if err != nil {
		return err
	}
	removed := removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	d.emit(Batch{{Added: nodes, Removed: removed, Target: n}})
	return nil
}

// SetText replaces n's children with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	removed := removeChildren(n)
	t := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(t)
	d.emit(Batch{{Added: []*html.Node{t}, Removed: removed, Target: n}})
}

// Remove detaches n from its parent and notifies the observer. Removing
// a detached node is a no-op.
func (d *Document) Remove(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	d.emit(Batch{{Removed: []*html.Node{n}, Target: parent}})
}

// Render serializes n back to HTML.
func Render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// InnerHTML serializes n's children.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// ParseFragment parses an HTML fragment in a generic body context and
// returns the top-level nodes, detached.
func ParseFragment(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	return html.ParseFragment(strings.NewReader(fragment), ctx)
}

func parseFragment(parent *html.Node, fragment string) ([]*html.Node, error) {
	ctx := parent
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		detach(n)
	}
	return nodes, nil
}

func removeChildren(n *html.Node) []*html.Node {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	return removed
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// walk visits n and its descendants in tree order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
