package domwire

import (
	"bytes"
	"context"
	"fmt"

	"github.com/a-h/templ"
	"golang.org/x/net/html"

	"github.com/mlev/domwire/dom"
)

// The declarative markup contract. These attribute names are what page
// authors write; they must stay stable.
const (
	// AttrChain holds a JSON array of steps to run on the element's
	// declared trigger.
	AttrChain = "data-chain"
	// AttrRequest holds a JSON object describing a single request step.
	AttrRequest = "data-request"
	// AttrJSONPath tags a form field with the dot-path its value folds
	// into during JSON assembly.
	AttrJSONPath = "data-json"
	// AttrKey and AttrValue optionally override a tagged field's key
	// and value.
	AttrKey   = "data-key"
	AttrValue = "data-value"
	// AttrNotice marks a notification region; its value is "json" or
	// "text" (default "text").
	AttrNotice = "data-notice"
	// AttrMerge holds a static JSON fragment merged underneath the
	// constructed objects.
	AttrMerge = "data-merge"
)

// Notification region modes.
const (
	NoticeText = "text"
	NoticeJSON = "json"
)

// ChainAttr parses the element's data-chain attribute. The second
// return reports whether the attribute is present at all.
func ChainAttr(n *html.Node) ([]Step, bool, error) {
	raw := dom.Attr(n, AttrChain)
	if raw == "" {
		return nil, false, nil
	}
	steps, err := ParseChain(raw)
	return steps, true, err
}

// RequestAttr parses the element's data-request attribute into a
// single request step. The second return reports presence.
func RequestAttr(n *html.Node) (*RequestStep, bool, error) {
	raw := dom.Attr(n, AttrRequest)
	if raw == "" {
		return nil, false, nil
	}
	var m map[string]any
	if err := json.UnmarshalFromString(raw, &m); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	step, ok := parseStep(m).(*RequestStep)
	if !ok {
		return nil, true, ErrMissingDispatch
	}
	return step, true, nil
}

// NoticeMode returns the region's declared response mode, defaulting
// to text.
func NoticeMode(n *html.Node) string {
	if dom.Attr(n, AttrNotice) == NoticeJSON {
		return NoticeJSON
	}
	return NoticeText
}

// InsertComponent renders a templ component and appends the resulting
// markup into every region matching the selector. Insertion goes
// through the document's mutation feed, so plugins watching the new
// markup initialize as if it had streamed in from the network.
func InsertComponent(ctx context.Context, doc *dom.Document, selector string, component templ.Component) error {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return fmt.Errorf("domwire: rendering component: %w", err)
	}
	regions := doc.QuerySelectorAll(selector)
	if len(regions) == 0 {
		return fmt.Errorf("domwire: no region matches %q", selector)
	}
	for _, region := range regions {
		if _, err := doc.AppendHTML(region, buf.String()); err != nil {
			return fmt.Errorf("domwire: inserting component: %w", err)
		}
	}
	return nil
}
