package domwire

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mlev/domwire/dom"
	"github.com/mlev/domwire/lib/pathmap"
)

// Submitter turns a form subtree into one POST request: flat fields
// travel as-is, dot-path-tagged fields are folded into nested JSON
// objects, and the response is written into the document's notification
// regions before execution continues into the form's declared chain.
type Submitter struct {
	exec   *Executor
	engine *Engine
	marker *Marker
	log    *zap.Logger
}

// NewSubmitter creates a form submitter. engine may be nil when no form
// declares a chain; marker may be nil to omit the origin marker field.
func NewSubmitter(exec *Executor, engine *Engine, marker *Marker, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{exec: exec, engine: engine, marker: marker, log: log}
}

// Submit snapshots the form, assembles its JSON-path objects, and
// dispatches the result as a POST to the form's action (or the current
// page path).
//
// onDone fires exactly once after the request settles, with the
// interpreted response or nil on failure: directly when the form
// declares no chain, or as the chain's final callback when it does.
// Independently of any chain, the response is written into every
// data-notice region - json-mode regions receive the response's
// "message" field, the rest receive the response text.
func (s *Submitter) Submit(ctx context.Context, form *html.Node, onDone func(any)) error {
	if !dom.IsForm(form) {
		return ErrNotForm
	}

	values := dom.FormValues(form)
	if err := s.assembleObjects(form, values); err != nil {
		return err
	}

	target := dom.Attr(form, "action")
	responseType := s.responseType()

	if s.marker != nil {
		token, err := s.marker.Token(s.exec.Page().URL())
		if err != nil {
			return fmt.Errorf("domwire: signing origin marker: %w", err)
		}
		values.Set(MarkerField, token)
	}

	chainRaw := dom.Attr(form, AttrChain)
	return s.exec.Do(ctx, "POST", responseType, target, values, func(res any) {
		s.writeNotices(res)

		if chainRaw != "" && s.engine != nil {
			err := s.engine.RunSerialized(ctx, chainRaw, func() {
				if onDone != nil {
					onDone(res)
				}
			})
			if err != nil {
				s.log.Warn("form chain aborted", zap.Error(err))
			}
			return
		}
		if onDone != nil {
			safeCall(s.log, "submit completion callback", func() { onDone(res) })
		}
	})
}

// assembleObjects folds data-json-tagged fields into nested objects
// grouped by the first path segment, deletes the raw fields from the
// outgoing data regardless of selection state, merges the form's static
// data-merge fragment underneath each object (constructed values win),
// and appends each object serialized under its name.
func (s *Submitter) assembleObjects(form *html.Node, values url.Values) error {
	objects := make(map[string]map[string]any)

	for _, field := range dom.Fields(form) {
		path := dom.Attr(field, AttrJSONPath)
		if path == "" {
			continue
		}
		name := dom.Attr(field, "name")
		values.Del(name)

		v, contributes := dom.Value(field)
		if dom.IsChoice(field) && !contributes {
			continue
		}

		objName, rest, _ := strings.Cut(path, ".")
		obj := objects[objName]
		if obj == nil {
			obj = make(map[string]any)
			objects[objName] = obj
		}

		key := dom.Attr(field, AttrKey)
		if key == "" {
			key = name
		}
		if dom.HasAttr(field, AttrValue) {
			v = dom.Attr(field, AttrValue)
		}
		pathmap.Set(obj, rest, key, v)
	}

	if len(objects) == 0 {
		return nil
	}

	var fragment map[string]any
	if raw := dom.Attr(form, AttrMerge); raw != "" {
		if err := json.UnmarshalFromString(raw, &fragment); err != nil {
			return fmt.Errorf("%w: data-merge fragment: %v", ErrInvalidChain, err)
		}
	}

	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obj := objects[name]
		if fragment != nil {
			if err := pathmap.Merge(obj, fragment); err != nil {
				return fmt.Errorf("domwire: merging static fragment: %w", err)
			}
		}
		serialized, err := json.MarshalToString(obj)
		if err != nil {
			return fmt.Errorf("domwire: serializing %q object: %w", name, err)
		}
		values.Set(name, serialized)
	}
	return nil
}

// responseType is "json" when any notification region declares json
// mode, "text" otherwise.
func (s *Submitter) responseType() string {
	for _, region := range s.exec.Page().QuerySelectorAll("[" + AttrNotice + "]") {
		if dom.Attr(region, AttrNotice) == NoticeJSON {
			return ResponseJSON
		}
	}
	return ResponseText
}

// writeNotices mirrors the response into every notification region.
func (s *Submitter) writeNotices(res any) {
	doc := s.exec.Page()
	for _, region := range doc.QuerySelectorAll("[" + AttrNotice + "]") {
		if dom.Attr(region, AttrNotice) == NoticeJSON {
			doc.SetText(region, jsonMessage(res))
			continue
		}
		doc.SetText(region, responseText(res))
	}
}

func responseText(res any) string {
	switch v := res.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return stringify(v)
	}
}
