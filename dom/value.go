package dom

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Value extracts the scalar value of a form-control-like node.
//
// The second return reports whether the control currently contributes a
// value: unchecked checkboxes and radios return their value with false.
// For selects the selected option wins, falling back to the first
// option. Nodes that are not form controls yield their "value" attribute
// when present, otherwise their text content.
func Value(n *html.Node) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}

	switch n.DataAtom {
	case atom.Input:
		switch strings.ToLower(Attr(n, "type")) {
		case "checkbox", "radio":
			v := Attr(n, "value")
			if v == "" {
				v = "on"
			}
			return v, HasAttr(n, "checked")
		default:
			return Attr(n, "value"), true
		}
	case atom.Select:
		var first, selected *html.Node
		walk(n, func(c *html.Node) bool {
			if c.Type == html.ElementNode && c.DataAtom == atom.Option {
				if first == nil {
					first = c
				}
				if HasAttr(c, "selected") && selected == nil {
					selected = c
				}
			}
			return true
		})
		opt := selected
		if opt == nil {
			opt = first
		}
		if opt == nil {
			return "", true
		}
		if HasAttr(opt, "value") {
			return Attr(opt, "value"), true
		}
		return strings.TrimSpace(Text(opt)), true
	case atom.Textarea:
		return Text(n), true
	}

	if HasAttr(n, "value") {
		return Attr(n, "value"), true
	}
	return strings.TrimSpace(Text(n)), true
}

// IsForm reports whether n is a form element.
func IsForm(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Form
}

// IsChoice reports whether n is a checkbox or radio input.
func IsChoice(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.DataAtom != atom.Input {
		return false
	}
	t := strings.ToLower(Attr(n, "type"))
	return t == "checkbox" || t == "radio"
}

// Fields returns the named form controls inside form, in tree order.
// Disabled controls and buttons are skipped, matching what a browser
// serializes on submit.
func Fields(form *html.Node) []*html.Node {
	var fields []*html.Node
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Input, atom.Select, atom.Textarea:
		default:
			return true
		}
		if Attr(n, "name") == "" || HasAttr(n, "disabled") {
			return true
		}
		switch strings.ToLower(Attr(n, "type")) {
		case "submit", "button", "reset", "image", "file":
			return true
		}
		fields = append(fields, n)
		return true
	})
	return fields
}

// FormValues snapshots a form's contributing fields into url.Values.
// Unchecked checkboxes and radios are left out.
func FormValues(form *html.Node) url.Values {
	values := url.Values{}
	for _, f := range Fields(form) {
		v, ok := Value(f)
		if !ok {
			continue
		}
		values.Add(Attr(f, "name"), v)
	}
	return values
}

// Text collects the concatenated text content of n's subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}
