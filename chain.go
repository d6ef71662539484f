package domwire

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Step is one unit of orchestrated work in a chain. The variant is
// closed: FuncStep, NamedStep, and *RequestStep are the only step kinds
// the engine executes; a parsed descriptor that fits none of them
// terminates its chain with ErrMissingDispatch when reached.
type Step interface {
	isStep()
}

// FuncStep is an in-memory callback step. It runs synchronously; a
// panic is recovered and logged and the chain continues.
type FuncStep func()

func (FuncStep) isStep() {}

// NamedStep names a function in the engine's Funcs registry. An
// unresolved name is logged and skipped. Like every other step kind,
// a named step continues into the remaining steps once invoked.
type NamedStep string

func (NamedStep) isStep() {}

// RequestStep describes one HTTP call. Control fields steer dispatch
// and never reach the wire; Data carries the outgoing payload,
// including any response-routing keys.
type RequestStep struct {
	// Method is the HTTP method, the field that makes a descriptor a
	// request step. GET payloads are query-encoded; POST payloads are
	// body-encoded.
	Method string
	// ResponseType selects the response interpretation: "json", "text",
	// or "html" (default "text").
	ResponseType string
	// Page rewrites the target URL; empty means the current page path.
	Page string
	// Module is moved into the payload as its "show" field.
	Module string
	// Callback names a Funcs entry invoked with the interpreted
	// response (nil on failure) before the chain continues.
	Callback string
	// OnDone is the in-memory alternative to Callback; when set it wins.
	OnDone func(any)
	// Delay defers dispatch of this step.
	Delay time.Duration
	// Data is the payload assembled from the descriptor's remaining
	// fields.
	Data url.Values
}

func (*RequestStep) isStep() {}

// invalidStep preserves an unclassifiable parsed descriptor so that the
// steps before it still execute; reaching it is the terminal error.
type invalidStep map[string]any

func (invalidStep) isStep() {}

// Request-step control fields, stripped from the outgoing payload.
const (
	stepFieldMethod   = "method"
	stepFieldType     = "type"
	stepFieldPage     = "page"
	stepFieldModule   = "module"
	stepFieldCallback = "callback"
	stepFieldFunction = "function"
	stepFieldDelay    = "delay"
)

// ParseChain decodes a serialized step chain: a JSON array whose
// elements are either strings naming registered functions or objects
// carrying a "function" or "method" field. Invalid JSON or a non-array
// top level is a construction error; no step of such a chain executes.
func ParseChain(raw string) ([]Step, error) {
	var items []any
	if err := json.UnmarshalFromString(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	steps := make([]Step, 0, len(items))
	for _, item := range items {
		steps = append(steps, parseStep(item))
	}
	return steps, nil
}

func parseStep(item any) Step {
	switch v := item.(type) {
	case string:
		return NamedStep(v)
	case map[string]any:
		if name, ok := v[stepFieldFunction].(string); ok {
			return NamedStep(name)
		}
		if _, ok := v[stepFieldMethod]; ok {
			return parseRequestStep(v)
		}
		return invalidStep(v)
	default:
		return invalidStep{"value": item}
	}
}

func parseRequestStep(m map[string]any) *RequestStep {
	s := &RequestStep{
		Method:       strings.ToUpper(stringField(m, stepFieldMethod)),
		ResponseType: stringField(m, stepFieldType),
		Page:         stringField(m, stepFieldPage),
		Module:       stringField(m, stepFieldModule),
		Callback:     stringField(m, stepFieldCallback),
		Data:         url.Values{},
	}
	if ms, ok := m[stepFieldDelay].(float64); ok && ms > 0 {
		s.Delay = time.Duration(ms) * time.Millisecond
	}
	for k, v := range m {
		switch k {
		case stepFieldMethod, stepFieldType, stepFieldPage,
			stepFieldModule, stepFieldCallback, stepFieldDelay:
			continue
		}
		s.Data.Set(k, stringify(v))
	}
	return s
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		s, _ := json.MarshalToString(t)
		return s
	}
}

// Engine executes step chains strictly in order.
//
// Non-request steps run synchronously with no yielding. A request step
// gates the chain: the following step never starts before the request
// has settled and the step's local callback has returned. The final
// callback fires exactly once, after the last step completes - also
// when the chain starts empty. A chain's step list is owned by its
// invocation; two invocations must not share one list.
type Engine struct {
	exec  *Executor
	funcs *Funcs
	log   *zap.Logger
}

// NewEngine creates a chain engine dispatching requests through exec
// and resolving named steps against funcs.
func NewEngine(exec *Executor, funcs *Funcs, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if funcs == nil {
		funcs = NewFuncs()
	}
	return &Engine{exec: exec, funcs: funcs, log: log}
}

// Funcs returns the engine's named-function registry.
func (e *Engine) Funcs() *Funcs { return e.funcs }

// Run executes steps left to right and invokes onComplete once the list
// is exhausted. Reaching a descriptor with neither a method nor a
// function field terminates the chain: later steps don't execute,
// onComplete doesn't fire, and ErrMissingDispatch is returned.
//
// The loop is deliberately iterative over the list, not recursive per
// step: long chains must not grow the stack.
func (e *Engine) Run(ctx context.Context, steps []Step, onComplete func()) error {
	for i := 0; i < len(steps); i++ {
		switch s := steps[i].(type) {
		case FuncStep:
			safeCall(e.log, "chain step", s)
		case NamedStep:
			e.funcs.call(string(s), nil, e.log)
		case *RequestStep:
			if err := e.runRequest(ctx, s); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w (step %d)", ErrMissingDispatch, i)
		}
	}
	if onComplete != nil {
		safeCall(e.log, "chain completion callback", onComplete)
	}
	return nil
}

// RunSerialized parses a JSON-serialized chain and runs it. A chain
// that doesn't parse executes nothing and fires no callback.
func (e *Engine) RunSerialized(ctx context.Context, raw string, onComplete func()) error {
	steps, err := ParseChain(raw)
	if err != nil {
		return err
	}
	return e.Run(ctx, steps, onComplete)
}

// runRequest derives the request descriptor from a step and dispatches
// it, blocking until the response settled and the step's local
// callback completed.
func (e *Engine) runRequest(ctx context.Context, s *RequestStep) error {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	method := s.Method
	if method == "" {
		method = "GET"
	}
	responseType := s.ResponseType
	if responseType == "" {
		responseType = ResponseText
	}

	target := ""
	if s.Page != "" {
		target = pagePath(s.Page)
	}

	payload := clonedValues(s.Data)
	if s.Module != "" {
		payload.Set("show", s.Module)
	}
	if method == "POST" {
		payload.Set("update", "1")
		payload.Set("from", e.exec.Page().Path())
		payload.Set("mime", responseType)
	}

	return e.exec.Do(ctx, method, responseType, target, payload, func(res any) {
		if s.OnDone != nil {
			safeCall(e.log, "request step callback", func() { s.OnDone(res) })
			return
		}
		if s.Callback != "" {
			e.funcs.call(s.Callback, res, e.log)
		}
	})
}

// pagePath turns a "page" field into a request path. Absolute URLs and
// rooted paths pass through; bare names address a root-level page.
func pagePath(page string) string {
	if strings.Contains(page, "://") || strings.HasPrefix(page, "/") {
		return page
	}
	return "/" + page
}

func clonedValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Debouncer coalesces rapid re-triggers of a chain into one run.
// Input-driven widgets trigger chains on every keystroke; only the run
// scheduled by the last trigger within the window executes.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given settle window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the settle window, cancelling any run a
// previous trigger scheduled but that hasn't started yet.
func (b *Debouncer) Trigger(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, fn)
}

// Stop cancels a pending run, if any.
func (b *Debouncer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
