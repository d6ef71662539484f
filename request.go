package domwire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mlev/domwire/dom"
)

// Response interpretations.
const (
	ResponseJSON = "json"
	ResponseText = "text"
	ResponseHTML = "html"
)

// Response-routing payload keys. Their values are selectors naming the
// document regions that receive the interpreted response. The keys
// travel with the payload; only dispatch control fields are stripped.
const (
	RouteHTML = "response_html"
	RouteText = "response_text"
	RouteJSON = "response_json"
)

// DefaultRequestTimeout bounds one request when the caller's context
// carries no deadline of its own.
const DefaultRequestTimeout = 30 * time.Second

// ClientConfig holds the HTTP client settings for an Executor.
type ClientConfig struct {
	// Timeout bounds each request. Zero means DefaultRequestTimeout.
	Timeout time.Duration
	// Transport overrides the client transport; tests install fakes here.
	Transport http.RoundTripper
	// BaseURL resolves relative request paths. Empty means the
	// document's own URL.
	BaseURL string
}

// Executor performs one HTTP request per call on behalf of chain steps
// and form submissions, interprets the response, routes it into
// document regions, and settles the caller's completion callback.
//
// Best effort by design: network failures, bad statuses, and parse
// failures all degrade to a nil result handed to the callback - the
// owning chain proceeds either way. Only an invalid payload shape is an
// error, raised before anything is sent.
type Executor struct {
	client *http.Client
	doc    *dom.Document
	base   *url.URL
	log    *zap.Logger
}

// NewExecutor creates an executor bound to a document. cfg may be nil.
func NewExecutor(doc *dom.Document, cfg *ClientConfig, log *zap.Logger) (*Executor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = doc.URL()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("domwire: invalid base URL: %w", err)
	}
	return &Executor{
		client: &http.Client{Timeout: timeout, Transport: cfg.Transport},
		doc:    doc,
		base:   base,
		log:    log,
	}, nil
}

// Page returns the document the executor serves.
func (x *Executor) Page() *dom.Document { return x.doc }

// Do performs one request and invokes onDone with the interpreted
// response, or with nil on transport or parse failure. The payload must
// be url.Values, a map[string]string, a form node, or nil; anything
// else is ErrInvalidPayload. GET requests never carry a body - the
// payload is query-encoded; POST requests body-encode it.
func (x *Executor) Do(ctx context.Context, method, responseType, target string, payload any, onDone func(any)) error {
	values, err := normalizePayload(payload)
	if err != nil {
		return err
	}

	if target == "" {
		target = x.doc.Path()
	}
	u, err := x.resolve(target)
	if err != nil {
		return fmt.Errorf("domwire: invalid request target %q: %w", target, err)
	}

	method = strings.ToUpper(method)
	var body io.Reader
	if method == http.MethodGet {
		q := u.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	} else {
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("domwire: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	raw, ok := x.send(req)
	var result any
	if ok {
		result = x.interpret(responseType, raw)
	}

	x.route(values, raw, result, ok)

	if onDone != nil {
		safeCall(x.log, "request completion callback", func() { onDone(result) })
	}
	return nil
}

// send performs the request and drains the body. A network error or a
// non-2xx status is a transport failure: logged, never returned.
func (x *Executor) send(req *http.Request) (string, bool) {
	resp, err := x.client.Do(req)
	if err != nil {
		x.log.Warn("request failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		x.log.Warn("reading response failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return "", false
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		x.log.Warn("request rejected",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode))
		return "", false
	}
	return string(raw), true
}

// interpret parses the raw response per the requested interpretation.
// A JSON body that doesn't parse degrades to nil, not a crash.
func (x *Executor) interpret(responseType, raw string) any {
	switch responseType {
	case ResponseJSON:
		var parsed any
		if err := json.UnmarshalFromString(raw, &parsed); err != nil {
			x.log.Warn("response is not valid JSON", zap.Error(err))
			return nil
		}
		return parsed
	default:
		return raw
	}
}

// route injects the response into the document regions the payload's
// routing keys select. response_html extracts the fragment subtree
// matching the same selector; response_text inserts the raw text;
// response_json inserts the parsed response's "message" field.
func (x *Executor) route(values url.Values, raw string, result any, ok bool) {
	if !ok {
		return
	}

	if sel := values.Get(RouteHTML); sel != "" {
		x.routeHTML(sel, raw)
	}
	if sel := values.Get(RouteText); sel != "" {
		for _, region := range x.doc.QuerySelectorAll(sel) {
			x.doc.SetText(region, raw)
		}
	}
	if sel := values.Get(RouteJSON); sel != "" {
		msg := jsonMessage(result)
		for _, region := range x.doc.QuerySelectorAll(sel) {
			x.doc.SetText(region, msg)
		}
	}
}

func (x *Executor) routeHTML(sel, raw string) {
	nodes, err := dom.ParseFragment(raw)
	if err != nil {
		x.log.Warn("response is not parseable markup", zap.Error(err))
		return
	}
	holder := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	for _, n := range nodes {
		holder.AppendChild(n)
	}
	matches := dom.Query(holder, sel)
	if len(matches) == 0 {
		x.log.Debug("response fragment has no match for routing selector",
			zap.String("selector", sel))
		return
	}
	content := dom.InnerHTML(matches[0])
	for _, region := range x.doc.QuerySelectorAll(sel) {
		if err := x.doc.SetInnerHTML(region, content); err != nil {
			x.log.Warn("injecting routed markup failed", zap.Error(err))
		}
	}
}

// jsonMessage extracts the "message" field from a parsed JSON response.
func jsonMessage(result any) string {
	m, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m["message"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return stringify(v)
	}
}

func (x *Executor) resolve(target string) (*url.URL, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	return x.base.ResolveReference(ref), nil
}

// normalizePayload flattens the accepted payload shapes to url.Values.
func normalizePayload(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case nil:
		return url.Values{}, nil
	case url.Values:
		return p, nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	case *html.Node:
		if !dom.IsForm(p) {
			return nil, ErrInvalidPayload
		}
		return dom.FormValues(p), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidPayload, payload)
	}
}
