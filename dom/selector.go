package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// The selector subset understood here:
//   - tag: "article", "div"
//   - .class: ".tooltip"
//   - #id: "#main"
//   - tag.class, tag#id
//   - tag[attr], tag[attr=val]
//   - parts separated by spaces (descendant combinator)
//
// Matching is scope-rooted: Query(scope, sel) considers scope itself and
// its descendants, so the root of a freshly inserted subtree is a
// candidate when matching is run from its parent container.

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// Query returns all nodes in scope's subtree (scope included) matching
// the selector, in tree order.
func Query(scope *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || scope == nil {
		return nil
	}

	matches := matchSimple(scope, parseSimpleSelector(parts[0]))

	// Descendant combinator: narrow through each subsequent part.
	for i := 1; i < len(parts); i++ {
		sel := parseSimpleSelector(parts[i])
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				next = append(next, matchSimple(c, sel)...)
			}
		}
		matches = dedupe(next)
	}

	return matches
}

// matchSimple finds all nodes in root's subtree (root included) matching
// a single selector part.
func matchSimple(root *html.Node, sel simpleSelector) []*html.Node {
	var results []*html.Node
	walk(root, func(n *html.Node) bool {
		if matchesSelector(n, sel) {
			results = append(results, n)
		}
		return true
	})
	return results
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}

	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		if !HasAttr(n, s.attrKey) {
			return false
		}
		if s.attrVal != "" && Attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}

	return true
}

func dedupe(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	seen := make(map[*html.Node]struct{}, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Attr returns the value of an attribute on a node, or "" if absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether a node carries an attribute, even when empty.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute on a node.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
